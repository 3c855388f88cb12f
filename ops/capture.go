package ops

import (
	"context"
	"io"

	"github.com/go-rod/rod/lib/proto"

	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/models"
)

// CaptureOptions configures a Screenshot or PDF operation.
type CaptureOptions struct {
	URL      string
	Stealth  bool
	FullPage bool // screenshot only
	Actions  []models.Action
}

// Screenshot returns an operation that navigates to opts.URL and captures
// a PNG of the viewport, or of the full page when opts.FullPage is set.
func Screenshot(opts CaptureOptions, policy *DomainPolicy) executor.Operation {
	return func(ctx context.Context, page driver.Page) (any, error) {
		p, err := preparePage(ctx, page, opts.URL, opts.Stealth, policy)
		if err != nil {
			return nil, err
		}

		pc := p.Context(ctx)
		if err := pc.Navigate(opts.URL); err != nil {
			return nil, models.NewNavigationError(opts.URL, err)
		}
		waitStable(pc)

		if len(opts.Actions) > 0 {
			if err := runActions(ctx, p, opts.Actions); err != nil {
				return nil, err
			}
		}

		png, err := pc.Screenshot(opts.FullPage, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			return nil, models.New(models.ErrCodeInternal, "screenshot capture failed", err)
		}
		return png, nil
	}
}

// PDF returns an operation that navigates to opts.URL and prints the page
// to a PDF document.
func PDF(opts CaptureOptions, policy *DomainPolicy) executor.Operation {
	return func(ctx context.Context, page driver.Page) (any, error) {
		p, err := preparePage(ctx, page, opts.URL, opts.Stealth, policy)
		if err != nil {
			return nil, err
		}

		pc := p.Context(ctx)
		if err := pc.Navigate(opts.URL); err != nil {
			return nil, models.NewNavigationError(opts.URL, err)
		}
		waitStable(pc)

		if len(opts.Actions) > 0 {
			if err := runActions(ctx, p, opts.Actions); err != nil {
				return nil, err
			}
		}

		printToPDF := &proto.PagePrintToPDF{PrintBackground: true}
		stream, err := pc.PDF(printToPDF)
		if err != nil {
			return nil, models.New(models.ErrCodeInternal, "pdf capture failed", err)
		}
		data, err := io.ReadAll(stream)
		if err != nil {
			return nil, models.New(models.ErrCodeInternal, "pdf stream read failed", err)
		}
		return data, nil
	}
}
