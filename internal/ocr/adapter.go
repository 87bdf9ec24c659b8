package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// RecognizePage runs engine on the image of a single 1-indexed page with a hard
// timeout. A timeout or an ErrEngine failure yields a PageResult carrying a
// Failure and a nil error. Every other error is returned.
func RecognizePage(ctx context.Context, engine Engine, page int, imagePath string, opts Options, timeout time.Duration) (PageResult, error) {
	const op = "RecognizePage"

	if _, err := os.Stat(imagePath); err != nil {
		return PageResult{}, fmt.Errorf("%s: page %d image: %w", op, page, err)
	}

	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := engine.Recognize(pageCtx, imagePath, opts)
	if err == nil {
		return PageResult{Page: page, Text: text}, nil
	}

	// A cancelled caller is not a page timeout.
	if ctx.Err() != nil {
		return PageResult{}, fmt.Errorf("%s: page %d: %w", op, page, ctx.Err())
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
		return PageResult{
			Page: page,
			Failure: &Failure{
				Kind:    FailureTimeout,
				Page:    page,
				Timeout: timeout,
				Detail:  err.Error(),
			},
		}, nil
	}

	if errors.Is(err, ErrEngine) {
		detail := err.Error()
		var ocrErr *OCRError
		if errors.As(err, &ocrErr) && ocrErr.Details != "" {
			detail = ocrErr.Details
		}
		return PageResult{
			Page: page,
			Failure: &Failure{
				Kind:   FailureEngine,
				Page:   page,
				Detail: detail,
			},
		}, nil
	}

	return PageResult{}, fmt.Errorf("%s: page %d: %w", op, page, err)
}
