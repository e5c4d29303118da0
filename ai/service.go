package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = time.Hour

// Service wraps a Provider with usage counters, a TTL response cache,
// and the analysis helpers the document agents use. Helpers prompt for
// JSON and fall back to safe defaults when the model answers free-form.
type Service struct {
	provider Provider
	logger   *slog.Logger

	mu        sync.Mutex
	requests  int
	tokens    int
	errors    int
	cacheHits int
	cache     map[string]cacheEntry
	cacheTTL  time.Duration
}

type cacheEntry struct {
	response string
	storedAt time.Time
}

// NewService wraps the provider. A nil logger uses slog.Default.
func NewService(p Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: p,
		logger:   logger.With(slog.String("component", "ai"), slog.String("provider", p.Name())),
		cache:    make(map[string]cacheEntry),
		cacheTTL: defaultCacheTTL,
	}
}

// ProviderName returns the name of the wrapped provider.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Generate produces a completion, serving repeats from the cache and
// updating usage counters.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	key := cacheKey(req)

	s.mu.Lock()
	if e, ok := s.cache[key]; ok && time.Since(e.storedAt) < s.cacheTTL {
		s.cacheHits++
		s.mu.Unlock()
		return e.response, nil
	}
	s.mu.Unlock()

	resp, err := s.provider.Generate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if err != nil {
		s.errors++
		s.logger.Error("generation failed", slog.Any("err", err))
		return "", fmt.Errorf("text generation: %w", err)
	}
	s.tokens += len(strings.Fields(resp))
	s.cache[key] = cacheEntry{response: resp, storedAt: time.Now()}
	return resp, nil
}

func cacheKey(req Request) string {
	h := sha256.Sum256([]byte(req.Prompt + "|" + req.Model + "|" +
		strconv.FormatFloat(req.Temperature, 'f', -1, 64)))
	return hex.EncodeToString(h[:])
}

// ClearCache drops all cached responses.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cacheEntry)
}

// Stats is a snapshot of service usage.
type Stats struct {
	Provider    string  `json:"provider"`
	Requests    int     `json:"requests_made"`
	TokensUsed  int     `json:"tokens_used"`
	Errors      int     `json:"errors_count"`
	CacheHits   int     `json:"cache_hits"`
	CacheSize   int     `json:"cache_size"`
	SuccessRate float64 `json:"success_rate"`
}

// Stats returns current usage counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Provider:    s.provider.Name(),
		Requests:    s.requests,
		TokensUsed:  s.tokens,
		Errors:      s.errors,
		CacheHits:   s.cacheHits,
		CacheSize:   len(s.cache),
		SuccessRate: float64(s.requests-s.errors) / float64(max(1, s.requests)),
	}
}

// SentimentResult is the outcome of sentiment analysis.
type SentimentResult struct {
	Sentiment   string  `json:"sentiment"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
	RawResponse string  `json:"raw_response,omitempty"`
}

// AnalyzeSentiment classifies the text's sentiment as positivo, neutro,
// or negativo.
func (s *Service) AnalyzeSentiment(ctx context.Context, text string) (SentimentResult, error) {
	prompt := "Analiza el sentimiento del siguiente texto y responde en formato JSON:\n" +
		`{"sentiment": "positivo/neutro/negativo", "confidence": 0.8, "reasoning": "breve explicación"}` +
		"\n\nTexto: " + clip(text, 1500)

	resp, err := s.Generate(ctx, Request{Prompt: prompt, Temperature: 0.3})
	if err != nil {
		return SentimentResult{}, err
	}

	var out SentimentResult
	if jerr := json.Unmarshal([]byte(resp), &out); jerr == nil && out.Sentiment != "" {
		return out, nil
	}
	// Plain-text fallback: "neutro|0.7" style answers.
	if sentiment, conf, ok := splitScored(resp); ok {
		return SentimentResult{Sentiment: sentiment, Confidence: conf}, nil
	}
	return SentimentResult{Sentiment: "neutro", Confidence: 0.5, RawResponse: resp}, nil
}

// EntityResult groups extracted entities by kind.
type EntityResult struct {
	Personas       []string `json:"personas"`
	Organizaciones []string `json:"organizaciones"`
	Lugares        []string `json:"lugares"`
	Fechas         []string `json:"fechas"`
	Dinero         []string `json:"dinero"`
	RawResponse    string   `json:"raw_response,omitempty"`
}

// ExtractEntities pulls named entities out of the text.
func (s *Service) ExtractEntities(ctx context.Context, text string) (EntityResult, error) {
	prompt := "Extrae entidades del siguiente texto y responde en formato JSON:\n" +
		`{"personas": [], "organizaciones": [], "lugares": [], "fechas": [], "dinero": []}` +
		"\n\nTexto: " + clip(text, 2000)

	resp, err := s.Generate(ctx, Request{Prompt: prompt, Temperature: 0.2})
	if err != nil {
		return EntityResult{}, err
	}

	var out EntityResult
	if jerr := json.Unmarshal([]byte(resp), &out); jerr == nil {
		return out, nil
	}
	// Line-based fallback: "TIPO: valor" pairs.
	out = EntityResult{RawResponse: resp}
	for _, line := range strings.Split(resp, "\n") {
		kind, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(kind)) {
		case "PERSONA":
			out.Personas = append(out.Personas, value)
		case "EMPRESA", "ORGANIZACION", "ORGANIZACIÓN":
			out.Organizaciones = append(out.Organizaciones, value)
		case "LUGAR":
			out.Lugares = append(out.Lugares, value)
		case "FECHA":
			out.Fechas = append(out.Fechas, value)
		case "DINERO":
			out.Dinero = append(out.Dinero, value)
		}
	}
	return out, nil
}

// ClassificationResult is the outcome of text classification.
type ClassificationResult struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
	RawResponse string  `json:"raw_response,omitempty"`
}

var defaultCategories = []string{"factura", "contrato", "cv", "informe", "email", "legal", "otros"}

// Classify assigns the text to one of the given categories, or the
// default document categories when none are supplied.
func (s *Service) Classify(ctx context.Context, text string, categories []string) (ClassificationResult, error) {
	if len(categories) == 0 {
		categories = defaultCategories
	}
	prompt := "Clasifica el siguiente texto en una de estas categorías: " +
		strings.Join(categories, ", ") + "\n\nResponde en formato JSON:\n" +
		`{"category": "categoria_elegida", "confidence": 0.8, "reasoning": "breve explicación"}` +
		"\n\nTexto: " + clip(text, 1500)

	resp, err := s.Generate(ctx, Request{Prompt: prompt, Temperature: 0.3})
	if err != nil {
		return ClassificationResult{}, err
	}

	var out ClassificationResult
	if jerr := json.Unmarshal([]byte(resp), &out); jerr == nil && out.Category != "" {
		return out, nil
	}
	// Plain-text fallback: "informe|0.8" style answers.
	if category, conf, ok := splitScored(resp); ok {
		return ClassificationResult{Category: category, Confidence: conf}, nil
	}
	return ClassificationResult{Category: "otros", Confidence: 0.1, RawResponse: resp}, nil
}

// AnalysisResult is the outcome of a general text analysis.
type AnalysisResult struct {
	Summary         string   `json:"summary"`
	MainTopics      []string `json:"main_topics"`
	Language        string   `json:"language"`
	TextType        string   `json:"text_type"`
	KeyPoints       []string `json:"key_points"`
	ActualWordCount int      `json:"actual_word_count"`
	RawResponse     string   `json:"raw_response,omitempty"`
}

// Analyze performs a general analysis of the text.
func (s *Service) Analyze(ctx context.Context, text string) (AnalysisResult, error) {
	prompt := "Realiza un análisis completo del siguiente texto y responde en formato JSON:\n" +
		`{"summary": "resumen en 2-3 frases", "main_topics": [], "language": "idioma", "text_type": "tipo", "key_points": []}` +
		"\n\nTexto: " + clip(text, 2500)

	resp, err := s.Generate(ctx, Request{Prompt: prompt, Temperature: 0.4})
	if err != nil {
		return AnalysisResult{}, err
	}

	out := AnalysisResult{ActualWordCount: len(strings.Fields(text))}
	if jerr := json.Unmarshal([]byte(resp), &out); jerr != nil {
		out = AnalysisResult{
			Summary:         "Análisis no disponible",
			Language:        "desconocido",
			TextType:        "desconocido",
			ActualWordCount: len(strings.Fields(text)),
			RawResponse:     resp,
		}
	}
	return out, nil
}

// Summarize condenses the text into a few sentences. Short texts are
// returned as-is.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if len(text) < 200 {
		return text, nil
	}
	prompt := "Resume el siguiente texto en máximo 3 frases, capturando los puntos más importantes:\n\n" +
		clip(text, 3000)
	return s.Generate(ctx, Request{Prompt: prompt, Temperature: 0.5})
}

// splitScored parses "label|score" responses.
func splitScored(resp string) (string, float64, bool) {
	label, score, ok := strings.Cut(strings.TrimSpace(resp), "|")
	if !ok || strings.ContainsAny(label, " \n") {
		return "", 0, false
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(score), 64)
	if err != nil {
		return label, 0.5, true
	}
	return label, conf, true
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
