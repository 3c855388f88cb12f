package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/inf-mc/NoteBot-sub001/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// actionRunners maps action types to their page-level implementations.
// Shape validation happens earlier, in validateAction.
var actionRunners = map[string]func(*rod.Page, models.Action) error{
	"wait":       runWait,
	"click":      runClick,
	"scroll":     runScroll,
	"execute_js": runJS,
}

// validateAction checks an action's shape without touching the page, so a
// malformed script is rejected before any browser work starts.
func validateAction(a models.Action) error {
	if _, ok := actionRunners[a.Type]; !ok {
		return fmt.Errorf("unknown action type: %q", a.Type)
	}
	switch a.Type {
	case "click":
		if a.Selector == "" {
			return fmt.Errorf("click action requires a selector")
		}
	case "execute_js":
		if a.Code == "" {
			return fmt.Errorf("execute_js action requires code")
		}
	case "scroll":
		switch a.Direction {
		case "", "up", "down":
		default:
			return fmt.Errorf("scroll direction must be up or down, got %q", a.Direction)
		}
	}
	return nil
}

// runActions runs the ordered list of scripted actions on the page. The
// whole script is validated up front; a malformed entry fails the request
// before the first action runs. A runtime failure names which action failed
// and how many completed.
func runActions(ctx context.Context, page *rod.Page, actions []models.Action) error {
	for i, a := range actions {
		if err := validateAction(a); err != nil {
			return models.New(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("action %d (%s) rejected", i, a.Type),
				err,
			)
		}
	}

	for i, a := range actions {
		actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
		err := actionRunners[a.Type](page.Context(actionCtx), a)
		cancel()
		if err != nil {
			return models.New(
				models.ErrCodeActionFailed,
				fmt.Sprintf("action %d (%s) failed after %d completed", i, a.Type, i),
				err,
			)
		}
	}
	return nil
}

// runWait either sleeps for a duration or waits for a CSS selector to appear.
func runWait(p *rod.Page, a models.Action) error {
	if a.Selector != "" {
		return p.WaitElementsMoreThan(a.Selector, 0)
	}
	if a.Milliseconds > 0 {
		return sleepCtx(p.GetContext(), time.Duration(a.Milliseconds)*time.Millisecond)
	}
	return nil
}

// runClick finds the element matching the selector and clicks it.
func runClick(p *rod.Page, a models.Action) error {
	el, err := p.Element(a.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", a.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// runScroll scrolls the page up or down by the specified number of viewports.
func runScroll(p *rod.Page, a models.Action) error {
	amount := a.Amount
	if amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	delta := float64(res.Value.Int())
	if a.Direction == "up" {
		delta = -delta
	}

	for i := 0; i < amount; i++ {
		if err := p.Mouse.Scroll(0, delta, 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		// Brief pause between steps to let lazy-loaded content trigger.
		if err := sleepCtx(p.GetContext(), 100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// runJS evaluates arbitrary JavaScript in the page context.
func runJS(p *rod.Page, a models.Action) error {
	_, err := p.Eval(a.Code)
	return err
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
