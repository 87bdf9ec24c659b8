package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine with a local Tesseract through gosseract.
type TesseractEngine struct {
	recognize func(imagePath string, opts Options) (string, error)

	// slots bounds the Tesseract runs in flight, including runs whose caller
	// already gave up.
	slots chan struct{}
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine that runs one
// recognition at a time.
func NewTesseractEngine() *TesseractEngine {
	return newTesseractEngine(recognizeFile, 1)
}

func newTesseractEngine(recognize func(string, Options) (string, error), maxRuns int) *TesseractEngine {
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &TesseractEngine{recognize: recognize, slots: make(chan struct{}, maxRuns)}
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

// Recognize runs Tesseract on imagePath.
//
// The cgo call cannot be interrupted, so it runs on its own goroutine. When ctx
// ends first Recognize returns ctx.Err() immediately and the run finishes in the
// background, still holding its slot. A call that cannot get a slot before ctx
// ends returns ctx.Err() without starting a run, so abandoned runs never pile up.
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string, opts Options) (string, error) {
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() { <-e.slots }()
		text, err := e.recognize(imagePath, opts)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-done:
		return o.text, o.err
	}
}

// recognizeFile runs one recognition with a fresh client.
func recognizeFile(imagePath string, opts Options) (string, error) {
	c := gosseract.NewClient()
	defer c.Close()
	return recognizeWithClient(c, imagePath, opts)
}

func recognizeWithClient(c *gosseract.Client, imagePath string, opts Options) (string, error) {
	const op = "Recognize"

	if err := c.SetImage(imagePath); err != nil {
		return "", engineError(op, fmt.Errorf("set image: %w", err))
	}
	if opts.Language != "" {
		if err := c.SetLanguage(strings.Split(opts.Language, "+")...); err != nil {
			return "", engineError(op, fmt.Errorf("set language: %w", err))
		}
	}
	if opts.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			return "", engineError(op, fmt.Errorf("set psm: %w", err))
		}
	}
	if opts.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(opts.DPI)); err != nil {
			return "", engineError(op, fmt.Errorf("set dpi: %w", err))
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", engineError(op, err)
	}
	return text, nil
}

// Close is a no-op; clients are created per page.
func (e *TesseractEngine) Close() error { return nil }
