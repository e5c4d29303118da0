package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const mockEntities = `PERSONA: Juan Pérez
EMPRESA: Acme Corporation
FECHA: 2024-01-15
DINERO: €1,500.00
LUGAR: Madrid, España`

// Mock returns canned responses keyed on prompt content. It keeps the
// system usable offline and gives the analysis helpers parseable
// output without a real model.
type Mock struct {
	// Latency, when positive, is slept before answering to simulate a
	// real backend.
	Latency time.Duration
}

// NewMock creates a mock provider with no simulated latency.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p := strings.ToLower(req.Prompt)
	switch {
	case strings.Contains(p, "clasifica") || strings.Contains(p, "classify"):
		return "informe|0.8", nil
	case strings.Contains(p, "entidades") || strings.Contains(p, "entities"):
		return mockEntities, nil
	case strings.Contains(p, "resumen") || strings.Contains(p, "summary"):
		return "Este documento contiene información importante sobre procesos empresariales. " +
			"Se destacan aspectos clave relacionados con la automatización y mejora de eficiencia.", nil
	case strings.Contains(p, "sentimiento") || strings.Contains(p, "sentiment"):
		return "neutro|0.7", nil
	case strings.Contains(p, "hola") || strings.Contains(p, "hello"):
		return "¡Hola! Soy el asistente del sistema AgentHub. Puedo ayudarte con " +
			"procesamiento de documentos, análisis de texto y automatización de tareas.", nil
	default:
		short := req.Prompt
		if len(short) > 50 {
			short = short[:50]
		}
		return fmt.Sprintf("Respuesta generada para: %q. Modo de desarrollo activo.", short), nil
	}
}
