package docproc

import "strings"

// Classification is the outcome of rule-based document classification.
type Classification struct {
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Scores     map[string]int `json:"scores"`
}

// Keyword patterns per document type. A keyword hit in either the text
// or the file name scores one point.
var patterns = map[string][]string{
	"factura":  {"factura", "invoice", "total:", "iva", "subtotal", "importe"},
	"contrato": {"contrato", "contract", "cláusula", "firma", "partes contratantes"},
	"cv":       {"curriculum", "experiencia laboral", "educación", "habilidades"},
	"informe":  {"informe", "report", "análisis", "conclusiones", "recomendaciones"},
	"email":    {"de:", "para:", "asunto:", "from:", "to:", "subject:"},
	"legal":    {"artículo", "ley", "decreto", "resolución", "jurisprudencia"},
}

// ClassifyByPatterns scores the text and file name against the keyword
// patterns and returns the best-scoring type. Confidence is the hit
// ratio of the winning pattern, capped at 1.
func ClassifyByPatterns(text, fileName string) Classification {
	textLower := strings.ToLower(text)
	nameLower := strings.ToLower(fileName)

	scores := make(map[string]int, len(patterns))
	best, bestScore := "desconocido", 0
	for docType, keywords := range patterns {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(textLower, kw) || strings.Contains(nameLower, kw) {
				score++
			}
		}
		scores[docType] = score
		if score > bestScore || (score == bestScore && score > 0 && docType < best) {
			best, bestScore = docType, score
		}
	}

	if bestScore == 0 {
		return Classification{Type: "desconocido", Scores: scores}
	}
	confidence := float64(bestScore) / float64(len(patterns[best]))
	if confidence > 1 {
		confidence = 1
	}
	return Classification{Type: best, Confidence: confidence, Scores: scores}
}
