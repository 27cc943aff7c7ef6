package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CookieStrategy is one way of locating a cookie-consent button.
// Exactly one of Selector and Text is set.
type CookieStrategy struct {
	// Name identifies the strategy in logs.
	Name string

	// Selector is a CSS selector for the button.
	Selector string

	// Text matches a button whose trimmed visible text equals it.
	Text string
}

// DefaultCookieStrategies returns the strategies tried in order:
// the OneTrust accept button, then buttons labelled "Accept All",
// "Accept all" and "Accept".
func DefaultCookieStrategies() []CookieStrategy {
	return []CookieStrategy{
		{Name: "onetrust", Selector: "#onetrust-accept-btn-handler"},
		{Name: "accept-all", Text: "Accept All"},
		{Name: "accept-all-lower", Text: "Accept all"},
		{Name: "accept", Text: "Accept"},
	}
}

// Script returns a JavaScript expression that clicks the first visible
// matching element and evaluates to true when it clicked.
func (s CookieStrategy) Script() (string, error) {
	switch {
	case s.Selector != "":
		sel, err := json.Marshal(s.Selector)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`(() => {
	let els;
	try { els = document.querySelectorAll(%s); } catch (e) { return false; }
	for (const el of els) {
		if (el.offsetParent !== null || el.getClientRects().length > 0) { el.click(); return true; }
	}
	return false;
})()`, sel), nil
	case s.Text != "":
		text, err := json.Marshal(s.Text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`(() => {
	const want = %s;
	for (const el of document.querySelectorAll('button, [role="button"]')) {
		if ((el.innerText || el.textContent || '').trim() !== want) continue;
		if (el.offsetParent !== null || el.getClientRects().length > 0) { el.click(); return true; }
	}
	return false;
})()`, text), nil
	default:
		return "", fmt.Errorf("cookie strategy %q has neither selector nor text", s.Name)
	}
}

// DismissResult reports what cookie dismissal did.
type DismissResult struct {
	// Strategy is the name of the strategy that clicked, if any.
	Strategy string

	// Clicked reports whether a button was clicked.
	Clicked bool
}

// evaluator runs a JavaScript expression and decodes a boolean result.
type evaluator func(ctx context.Context, script string) (bool, error)

// dismissCookies tries strategies in order and stops at the first click.
// Errors of individual strategies are joined and returned alongside the
// result; they never mean the page is unusable.
func dismissCookies(ctx context.Context, eval evaluator, strategies []CookieStrategy) (DismissResult, error) {
	var errs []error
	for _, s := range strategies {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		script, err := s.Script()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		clicked, err := eval(ctx, script)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		if clicked {
			return DismissResult{Strategy: s.Name, Clicked: true}, errors.Join(errs...)
		}
	}
	return DismissResult{}, errors.Join(errs...)
}
