package docproc

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichub/agenthub/agent"
	"github.com/agentichub/agenthub/ai"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(devNull{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func defaultSettings() map[string]any {
	return map[string]any{
		"supported_formats": []string{"txt", "pdf", "docx"},
		"max_file_size":     int64(10 << 20),
	}
}

func newProcessor(t *testing.T, settings map[string]any) (*agent.Agent, *Processor) {
	t.Helper()
	svc := ai.NewService(ai.NewMock(), quietLogger())
	a, p, err := New("doc-agent", "test document agent", settings, Deps{
		AI:     svc,
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, p
}

func TestSettingsValidation(t *testing.T) {
	_, _, err := New("doc-agent", "", map[string]any{}, Deps{Logger: quietLogger()})
	var serr *agent.SettingsError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Missing, "supported_formats")
	assert.Contains(t, serr.Missing, "max_file_size")
}

func TestParseSettingsTypes(t *testing.T) {
	s, err := ParseSettings("a", map[string]any{
		"supported_formats":   []any{"txt", "pdf"},
		"max_file_size":       float64(1024),
		"ocr_enabled":         false,
		"ai_analysis_enabled": false,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"txt", "pdf"}, s.SupportedFormats)
	assert.Equal(t, int64(1024), s.MaxFileSize)
	assert.False(t, s.OCREnabled)
	assert.False(t, s.AIEnabled)
	assert.True(t, s.AutoClassify)
}

func TestAgentCapabilitiesFixed(t *testing.T) {
	a, _ := newProcessor(t, defaultSettings())
	assert.Equal(t, capabilities, a.Capabilities())
}

func TestExtractTextEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saludo.txt")
	require.NoError(t, os.WriteFile(path, []byte("hola mundo"), 0o644))

	a, p := newProcessor(t, defaultSettings())
	id, err := a.Submit(OpExtractText, map[string]any{"file_path": path}, agent.PriorityHigh)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var result any
	for time.Now().Before(deadline) {
		result, err = a.Result(id)
		if err == nil {
			break
		}
		require.ErrorIs(t, err, agent.ErrTaskNotDone)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, err)

	doc, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hola mundo", doc["text"])
	assert.Equal(t, 2, doc["word_count"])
	assert.Equal(t, "plain_text", doc["extraction_method"])
	assert.Equal(t, "saludo.txt", doc["file_name"])
	assert.Equal(t, 1, doc["pages"])
	assert.Equal(t, "es", doc["language"])

	stats := p.Stats()
	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.Equal(t, 1, stats.PagesExtracted)
}

func TestExtractTextRejectsUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	_, p := newProcessor(t, defaultSettings())
	_, err := p.ExtractText(context.Background(), &agent.Task{
		Payload: map[string]any{"file_path": path},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestExtractTextRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("demasiado grande"), 0o644))

	_, p := newProcessor(t, map[string]any{
		"supported_formats": []string{"txt"},
		"max_file_size":     5,
	})
	_, err := p.ExtractText(context.Background(), &agent.Task{
		Payload: map[string]any{"file_path": path},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestExtractTextMissingFile(t *testing.T) {
	_, p := newProcessor(t, defaultSettings())
	_, err := p.ExtractText(context.Background(), &agent.Task{
		Payload: map[string]any{"file_path": "/no/such/file.txt"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestAnalyzeDocument(t *testing.T) {
	_, p := newProcessor(t, defaultSettings())
	res, err := p.AnalyzeDocument(context.Background(), &agent.Task{
		Payload: map[string]any{"text": "Informe anual con conclusiones y recomendaciones del análisis."},
	})
	require.NoError(t, err)

	analysis, ok := res.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 8, analysis["word_count"])

	classification, ok := analysis["classification"].(ai.ClassificationResult)
	require.True(t, ok)
	assert.Equal(t, "informe", classification.Category)

	sentiment, ok := analysis["sentiment"].(ai.SentimentResult)
	require.True(t, ok)
	assert.Equal(t, "neutro", sentiment.Sentiment)

	assert.NotEmpty(t, analysis["summary"])
	assert.Equal(t, "es", analysis["language"])
}

func TestAnalyzeDocumentRequiresText(t *testing.T) {
	_, p := newProcessor(t, defaultSettings())
	_, err := p.AnalyzeDocument(context.Background(), &agent.Task{Payload: map[string]any{"text": "  "}})
	assert.Error(t, err)
}

func TestClassifyByPatterns(t *testing.T) {
	c := ClassifyByPatterns("Factura n.2 total: 100 EUR con IVA y subtotal detallado", "factura_enero.pdf")
	assert.Equal(t, "factura", c.Type)
	assert.Greater(t, c.Confidence, 0.5)
	assert.Equal(t, 4, c.Scores["factura"])

	c = ClassifyByPatterns("texto sin marcas reconocibles", "")
	assert.Equal(t, "desconocido", c.Type)
	assert.Zero(t, c.Confidence)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "es", DetectLanguage("el informe de la empresa es claro y no presenta errores"))
	assert.Equal(t, "en", DetectLanguage("the quick brown fox jumps over the lazy dog and you know it"))
	assert.Equal(t, "und", DetectLanguage("xyzzy"))
}

func TestProcessBatch(t *testing.T) {
	dir := t.TempDir()
	okPath := filepath.Join(dir, "uno.txt")
	require.NoError(t, os.WriteFile(okPath, []byte("informe con conclusiones y recomendaciones"), 0o644))

	_, p := newProcessor(t, defaultSettings())
	res, err := p.ProcessBatch(context.Background(), &agent.Task{
		Payload: map[string]any{
			"file_paths": []any{okPath, filepath.Join(dir, "missing.txt")},
		},
	})
	require.NoError(t, err)

	batch, ok := res.(*BatchResult)
	require.True(t, ok)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 1, batch.Processed)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Documents, 2)
	assert.Contains(t, batch.Documents[1], "error")

	classification, ok := batch.Documents[0]["classification"].(Classification)
	require.True(t, ok)
	assert.Equal(t, "informe", classification.Type)

	assert.Equal(t, 5, batch.Summary["total_words"])
	assert.Equal(t, 1, batch.Summary["successful_documents"])
}
