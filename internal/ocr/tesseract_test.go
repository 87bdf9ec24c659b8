package ocr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTesseractAbandonedRunsAreCapped(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	engine := newTesseractEngine(func(imagePath string, opts Options) (string, error) {
		started.Add(1)
		<-release
		return "1. A widget", nil
	}, 1)
	img := writeImage(t)

	// every page times out while the first run is stuck in the engine
	for page := 1; page <= 5; page++ {
		res, err := RecognizePage(context.Background(), engine, page, img, Options{}, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("page %d: timeout should be contained, got %v", page, err)
		}
		if res.Failure == nil || res.Failure.Kind != FailureTimeout {
			t.Fatalf("page %d: expected timeout failure, got %+v", page, res)
		}
	}
	if got := started.Load(); got != 1 {
		t.Fatalf("engine runs started = %d, want 1", got)
	}

	close(release)
	res, err := RecognizePage(context.Background(), engine, 6, img, Options{}, time.Second)
	if err != nil {
		t.Fatalf("RecognizePage() error = %v", err)
	}
	if res.Failed() || res.Text != "1. A widget" {
		t.Fatalf("unexpected result after release: %+v", res)
	}
	if got := started.Load(); got != 2 {
		t.Fatalf("engine runs started = %d, want 2", got)
	}
}

func TestTesseractEngineErrorReleasesSlot(t *testing.T) {
	var calls atomic.Int32
	engine := newTesseractEngine(func(string, Options) (string, error) {
		calls.Add(1)
		return "", engineError("Recognize", errors.New("Error during processing."))
	}, 0)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := engine.Recognize(ctx, "page.jpg", Options{})
		cancel()
		if !errors.Is(err, ErrEngine) {
			t.Fatalf("call %d: expected ErrEngine, got %v", i, err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("engine runs = %d, want 3", got)
	}
}
