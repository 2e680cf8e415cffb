package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetrier(attempts int) *Retrier {
	return &Retrier{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func always(error) bool { return true }
func never(error) bool  { return false }

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := NewRetrier(3).Do(context.Background(), always, func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := fastRetrier(3).Do(context.Background(), IsThrottled, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New(`[{"errorCode":"REQUEST_LIMIT_EXCEEDED"}]`)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := fastRetrier(3).Do(context.Background(), always, func(_ context.Context) error {
		calls++
		return errors.New("still down")
	})
	if err == nil || err.Error() != "still down" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NotRetryable(t *testing.T) {
	var calls int
	_ = fastRetrier(5).Do(context.Background(), never, func(_ context.Context) error {
		calls++
		return errors.New("INVALID_FIELD")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ZeroValueSingleAttempt(t *testing.T) {
	var calls int
	var r Retrier
	_ = r.Do(context.Background(), always, func(_ context.Context) error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Retrier{MaxAttempts: 5, InitialBackoff: time.Hour}

	var calls int
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, always, func(_ context.Context) error {
			calls++
			return errors.New("temporary")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_OnRetry(t *testing.T) {
	r := fastRetrier(3)
	var attempts []int
	r.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = r.Do(context.Background(), always, func(_ context.Context) error {
		return errors.New("temporary")
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected retries after attempts [1 2], got %v", attempts)
	}
}

func TestValue_ReturnsResult(t *testing.T) {
	var calls int
	id, err := Value(context.Background(), fastRetrier(3), IsTransient, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("read tcp: i/o timeout")
		}
		return "003xx", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "003xx" {
		t.Errorf("expected 003xx, got %q", id)
	}
}

func TestValue_ZeroOnFailure(t *testing.T) {
	id, err := Value(context.Background(), fastRetrier(2), always, func(_ context.Context) (string, error) {
		return "partial", errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if id != "" {
		t.Errorf("expected zero value, got %q", id)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	r := &Retrier{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := r.backoff(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	r := &Retrier{InitialBackoff: 100 * time.Millisecond, Jitter: 0.2}
	for range 100 {
		d := r.backoff(1)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jittered delay %v outside [80ms, 120ms]", d)
		}
	}
}

func TestLogRetries(t *testing.T) {
	fn := LogRetries("sf: query")
	if fn == nil {
		t.Fatal("expected callback")
	}
	fn(1, errors.New("test"))
}
