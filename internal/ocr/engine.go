package ocr

import (
	"context"
	"fmt"
	"strings"
)

// NewEngine builds the engine registered under name. documentAI is only read for
// the documentai engine.
func NewEngine(ctx context.Context, name string, documentAI DocumentAIConfig) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineTesseract:
		return NewTesseractEngine(), nil
	case EngineVision:
		engine, err := NewVisionEngine(ctx)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineDocumentAI:
		engine, err := NewDocumentAIEngine(ctx, documentAI)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %s, %s or %s)", ErrUnknownEngine, name,
			EngineTesseract, EngineVision, EngineDocumentAI)
	}
}
