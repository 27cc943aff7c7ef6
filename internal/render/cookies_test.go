package render

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestCookieStrategyScript tests dismissal script generation.
func TestCookieStrategyScript(t *testing.T) {
	t.Parallel()

	t.Run("selector is quoted", func(t *testing.T) {
		t.Parallel()

		script, err := CookieStrategy{Name: "x", Selector: `#a"b`}.Script()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(script, `querySelectorAll("#a\"b")`) {
			t.Errorf("selector not safely quoted: %s", script)
		}
	})

	t.Run("text match", func(t *testing.T) {
		t.Parallel()

		script, err := CookieStrategy{Name: "x", Text: "Accept All"}.Script()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(script, `const want = "Accept All";`) {
			t.Errorf("text not embedded: %s", script)
		}
	})

	t.Run("empty strategy", func(t *testing.T) {
		t.Parallel()

		if _, err := (CookieStrategy{Name: "empty"}).Script(); err == nil {
			t.Error("expected error for empty strategy")
		}
	})
}

// TestDismissCookies tests the ordered strategy loop.
func TestDismissCookies(t *testing.T) {
	t.Parallel()

	strategies := DefaultCookieStrategies()
	if strategies[0].Selector != "#onetrust-accept-btn-handler" {
		t.Fatalf("unexpected first strategy: %+v", strategies[0])
	}

	t.Run("stops at first click", func(t *testing.T) {
		t.Parallel()

		var calls int
		eval := func(_ context.Context, script string) (bool, error) {
			calls++
			return strings.Contains(script, `"Accept all"`), nil
		}

		res, err := dismissCookies(context.Background(), eval, strategies)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Clicked || res.Strategy != "accept-all-lower" {
			t.Errorf("unexpected result: %+v", res)
		}
		if calls != 3 {
			t.Errorf("expected 3 evaluations, got %d", calls)
		}
	})

	t.Run("nothing to click", func(t *testing.T) {
		t.Parallel()

		eval := func(context.Context, string) (bool, error) { return false, nil }
		res, err := dismissCookies(context.Background(), eval, strategies)
		if err != nil || res.Clicked {
			t.Errorf("expected no click and no error, got %+v, %v", res, err)
		}
	})

	t.Run("errors are reported but do not stop the loop", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("evaluation failed")
		eval := func(_ context.Context, script string) (bool, error) {
			if strings.Contains(script, "onetrust") {
				return false, boom
			}
			return strings.Contains(script, `"Accept"`), nil
		}

		res, err := dismissCookies(context.Background(), eval, strategies)
		if !errors.Is(err, boom) {
			t.Errorf("expected joined error, got %v", err)
		}
		if !res.Clicked || res.Strategy != "accept" {
			t.Errorf("expected later strategy to click, got %+v", res)
		}
	})
}
