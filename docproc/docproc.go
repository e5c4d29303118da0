// Package docproc implements the document-processing agent: text
// extraction per format, AI-backed analysis, rule-based classification,
// and batch processing on top of the agent task queue.
package docproc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentichub/agenthub/agent"
	"github.com/agentichub/agenthub/ai"
	"github.com/agentichub/agenthub/extract"
)

// Type is the factory type name for document-processing agents.
const Type = "document_processor"

// Operation names accepted by a document-processing agent.
const (
	OpExtractText     = "extract_text"
	OpAnalyzeDocument = "analyze_document"
	OpClassify        = "classify_document"
	OpExtractEntities = "extract_entities"
	OpProcessBatch    = "process_batch"
)

var capabilities = []string{
	OpExtractText,
	OpAnalyzeDocument,
	OpClassify,
	OpExtractEntities,
	OpProcessBatch,
}

// Settings is the validated configuration of a document processor.
type Settings struct {
	SupportedFormats []string
	MaxFileSize      int64
	OCREnabled       bool
	AIEnabled        bool
	AutoClassify     bool
}

// ParseSettings validates the free-form settings map. supported_formats
// and max_file_size are required; the feature toggles default to on.
func ParseSettings(name string, raw map[string]any) (Settings, error) {
	s := Settings{OCREnabled: true, AIEnabled: true, AutoClassify: true}

	var missing []string
	formats, ok := stringSlice(raw["supported_formats"])
	if !ok || len(formats) == 0 {
		missing = append(missing, "supported_formats")
	}
	size, ok := intValue(raw["max_file_size"])
	if !ok || size <= 0 {
		missing = append(missing, "max_file_size")
	}
	if len(missing) > 0 {
		return Settings{}, &agent.SettingsError{Agent: name, Missing: missing}
	}

	s.SupportedFormats = formats
	s.MaxFileSize = size
	if v, ok := raw["ocr_enabled"].(bool); ok {
		s.OCREnabled = v
	}
	if v, ok := raw["ai_analysis_enabled"].(bool); ok {
		s.AIEnabled = v
	}
	if v, ok := raw["auto_classify"].(bool); ok {
		s.AutoClassify = v
	}
	return s, nil
}

func stringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func intValue(v any) (int64, bool) {
	switch vv := v.(type) {
	case int:
		return int64(vv), true
	case int64:
		return vv, true
	case float64:
		return int64(vv), true
	default:
		return 0, false
	}
}

// Processor holds the collaborators and counters behind one
// document-processing agent. Its methods are the agent's operation
// handlers.
type Processor struct {
	settings   Settings
	ai         *ai.Service
	extractors *extract.Registry
	logger     *slog.Logger

	mu           sync.Mutex
	docsDone     int
	pagesPulled  int
	ocrDone      int
}

// Deps are the collaborators shared across document agents.
type Deps struct {
	AI         *ai.Service
	Extractors *extract.Registry // defaults to extract.NewRegistry()
	Logger     *slog.Logger
	Observer   agent.Observer
	Archive    agent.Archiver
}

// New builds a document-processing agent and the Processor backing it.
func New(name, description string, raw map[string]any, deps Deps) (*agent.Agent, *Processor, error) {
	settings, err := ParseSettings(name, raw)
	if err != nil {
		return nil, nil, err
	}
	if deps.Extractors == nil {
		deps.Extractors = extract.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	p := &Processor{
		settings:   settings,
		ai:         deps.AI,
		extractors: deps.Extractors,
		logger:     deps.Logger.With(slog.String("processor", name)),
	}

	cfg := agent.Config{
		Name:         name,
		Description:  description,
		TaskTimeout:  timeoutFrom(raw),
		MaxQueue:     queueFrom(raw),
		Capabilities: capabilities,
		Logger:       deps.Logger,
		Observer:     deps.Observer,
		Archive:      deps.Archive,
	}
	a, err := agent.New(cfg, map[string]agent.HandlerFunc{
		OpExtractText:     p.ExtractText,
		OpAnalyzeDocument: p.AnalyzeDocument,
		OpClassify:        p.ClassifyDocument,
		OpExtractEntities: p.ExtractEntities,
		OpProcessBatch:    p.ProcessBatch,
	})
	if err != nil {
		return nil, nil, err
	}
	return a, p, nil
}

// RegisterType binds the document-processor constructor into a factory.
// The track callback, when non-nil, receives each new agent's id and
// backing Processor.
func RegisterType(f *agent.Factory, deps Deps, track func(agentID string, p *Processor)) {
	f.Register(Type, func(name, description string, settings map[string]any) (*agent.Agent, error) {
		a, p, err := New(name, description, settings, deps)
		if err != nil {
			return nil, err
		}
		if track != nil {
			track(a.ID(), p)
		}
		return a, nil
	})
}

func timeoutFrom(raw map[string]any) time.Duration {
	if v, ok := intValue(raw["timeout_seconds"]); ok && v > 0 {
		return time.Duration(v) * time.Second
	}
	return 0
}

func queueFrom(raw map[string]any) int {
	if v, ok := intValue(raw["max_queue"]); ok && v > 0 {
		return int(v)
	}
	return 0
}

// AutoClassify reports whether extracted documents should get a
// classification follow-up.
func (p *Processor) AutoClassify() bool { return p.settings.AutoClassify }

// ExtractText pulls text from the file named by payload["file_path"].
func (p *Processor) ExtractText(ctx context.Context, t *agent.Task) (any, error) {
	path, _ := t.Payload["file_path"].(string)
	if path == "" {
		return nil, fmt.Errorf("missing file_path")
	}
	return p.extractFile(ctx, path)
}

func (p *Processor) extractFile(ctx context.Context, path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if info.Size() > p.settings.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (limit %d)", info.Size(), p.settings.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !p.formatSupported(ext) {
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}

	extractor, err := p.extractors.For(path)
	if err != nil {
		return nil, err
	}
	if _, isOCR := extractor.(*extract.OCR); isOCR && !p.settings.OCREnabled {
		return nil, fmt.Errorf("ocr disabled for format %s", ext)
	}

	ex, err := extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	p.mu.Lock()
	p.docsDone++
	p.pagesPulled += ex.Pages
	if ex.Method == "ocr" {
		p.ocrDone++
	}
	p.mu.Unlock()

	result := map[string]any{
		"file_path":         path,
		"file_name":         filepath.Base(path),
		"file_size":         info.Size(),
		"processed_at":      time.Now().Format(time.RFC3339),
		"text":              ex.Text,
		"metadata":          ex.Metadata,
		"pages":             ex.Pages,
		"word_count":        ex.WordCount(),
		"char_count":        len(ex.Text),
		"extraction_method": ex.Method,
	}
	if p.settings.AIEnabled {
		result["language"] = DetectLanguage(ex.Text)
	}
	p.logger.Info("text extracted", slog.String("file", filepath.Base(path)),
		slog.Int("words", ex.WordCount()), slog.String("method", ex.Method))
	return result, nil
}

func (p *Processor) formatSupported(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, f := range p.settings.SupportedFormats {
		if strings.TrimPrefix(strings.ToLower(f), ".") == ext {
			return true
		}
	}
	return false
}

// AnalyzeDocument runs the full AI analysis over payload["text"].
func (p *Processor) AnalyzeDocument(ctx context.Context, t *agent.Task) (any, error) {
	text, _ := t.Payload["text"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to analyze")
	}

	analysis := map[string]any{
		"timestamp":   time.Now().Format(time.RFC3339),
		"text_length": len(text),
		"word_count":  len(strings.Fields(text)),
	}
	if !p.settings.AIEnabled || p.ai == nil {
		return analysis, nil
	}

	classification, err := p.ai.Classify(ctx, text, nil)
	if err != nil {
		return nil, err
	}
	entities, err := p.ai.ExtractEntities(ctx, text)
	if err != nil {
		return nil, err
	}
	summary, err := p.ai.Summarize(ctx, text)
	if err != nil {
		return nil, err
	}
	sentiment, err := p.ai.AnalyzeSentiment(ctx, text)
	if err != nil {
		return nil, err
	}

	analysis["classification"] = classification
	analysis["entities"] = entities
	analysis["summary"] = summary
	analysis["sentiment"] = sentiment
	analysis["language"] = DetectLanguage(text)
	return analysis, nil
}

// ClassifyDocument scores payload["text"] against the rule patterns,
// adding an AI classification when enabled.
func (p *Processor) ClassifyDocument(ctx context.Context, t *agent.Task) (any, error) {
	text, _ := t.Payload["text"].(string)
	fileName, _ := t.Payload["file_name"].(string)

	basic := ClassifyByPatterns(text, fileName)
	if !p.settings.AIEnabled || p.ai == nil {
		return map[string]any{"classification": basic}, nil
	}

	aiResult, err := p.ai.Classify(ctx, text, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"basic_classification": basic,
		"ai_classification":    aiResult,
		"confidence":           aiResult.Confidence,
	}, nil
}

// ExtractEntities pulls named entities from payload["text"].
func (p *Processor) ExtractEntities(ctx context.Context, t *agent.Task) (any, error) {
	text, _ := t.Payload["text"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to analyze")
	}
	if p.ai == nil {
		return nil, fmt.Errorf("ai service not configured")
	}
	return p.ai.ExtractEntities(ctx, text)
}

// BatchResult aggregates the outcome of a batch run.
type BatchResult struct {
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Documents []map[string]any `json:"documents"`
	Summary   map[string]any   `json:"summary"`
}

// ProcessBatch extracts every file in payload["file_paths"]. A failing
// file is recorded and skipped; the batch itself never fails.
func (p *Processor) ProcessBatch(ctx context.Context, t *agent.Task) (any, error) {
	paths, ok := stringSlice(t.Payload["file_paths"])
	if !ok {
		return nil, fmt.Errorf("missing file_paths")
	}

	result := &BatchResult{Total: len(paths), Documents: []map[string]any{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := p.extractFile(ctx, path)
		if err != nil {
			p.logger.Error("batch file failed", slog.String("file", path), slog.Any("err", err))
			result.Failed++
			result.Documents = append(result.Documents, map[string]any{
				"file_path": path,
				"error":     err.Error(),
			})
			continue
		}
		if p.settings.AutoClassify {
			text, _ := doc["text"].(string)
			fileName, _ := doc["file_name"].(string)
			doc["classification"] = ClassifyByPatterns(text, fileName)
		}
		result.Documents = append(result.Documents, doc)
		result.Processed++
	}
	result.Summary = batchSummary(result.Documents)
	return result, nil
}

func batchSummary(documents []map[string]any) map[string]any {
	var ok []map[string]any
	for _, doc := range documents {
		if _, failed := doc["error"]; !failed {
			ok = append(ok, doc)
		}
	}
	if len(ok) == 0 {
		return map[string]any{
			"total_words":    0,
			"document_types": map[string]int{},
			"languages":      map[string]int{},
		}
	}

	totalWords, totalPages := 0, 0
	docTypes := map[string]int{}
	languages := map[string]int{}
	for _, doc := range ok {
		if n, found := doc["word_count"].(int); found {
			totalWords += n
		}
		if n, found := doc["pages"].(int); found {
			totalPages += n
		}
		if c, found := doc["classification"].(Classification); found {
			docTypes[c.Type]++
		}
		if lang, found := doc["language"].(string); found {
			languages[lang]++
		}
	}
	return map[string]any{
		"total_words":          totalWords,
		"average_words":        totalWords / len(ok),
		"document_types":       docTypes,
		"languages":            languages,
		"successful_documents": len(ok),
		"total_pages":          totalPages,
	}
}

// ProcessingStats are the processor-specific counters.
type ProcessingStats struct {
	DocumentsProcessed int     `json:"documents_processed"`
	PagesExtracted     int     `json:"pages_extracted"`
	OCROperations      int     `json:"ocr_operations"`
	AvgPagesPerDoc     float64 `json:"avg_pages_per_doc"`
}

// Stats returns the processor counters.
func (p *Processor) Stats() ProcessingStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProcessingStats{
		DocumentsProcessed: p.docsDone,
		PagesExtracted:     p.pagesPulled,
		OCROperations:      p.ocrDone,
		AvgPagesPerDoc:     float64(p.pagesPulled) / float64(max(1, p.docsDone)),
	}
}
