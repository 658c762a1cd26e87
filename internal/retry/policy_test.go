package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.Initial != time.Second || p.Max != 30*time.Second || p.MaxRetries != 2 {
		t.Fatalf("unexpected defaults %+v", p)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed || p.MaxRetries != 5 {
		t.Fatalf("unexpected policy %+v", p)
	}
	if unknown := NewPolicy("quadratic", 0, 0, -1); unknown.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected unknown mode to keep default, got %s", unknown.Mode)
	}
}

func TestDelayModes(t *testing.T) {
	cases := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, time.Second, 3), 3, 100 * time.Millisecond},
		{"linear", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 2, 200 * time.Millisecond},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 3, 250 * time.Millisecond},
		{"exponential", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 2, 100 * time.Millisecond},
		{"exponential capped", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 4, 160 * time.Millisecond},
		{"zero attempt", DefaultPolicy(), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Delay(tc.attempt); got != tc.want {
				t.Fatalf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.NetworkError("temporary").Build()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(context.Background(), func(int) error {
		calls++
		return errors.ModuleError("404").Build()
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	boom := stderrors.New("boom")
	err := p.Do(context.Background(), func(int) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestDoHonoursContext(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(context.Background())
	err := p.Do(ctx, func(int) error {
		cancel()
		return stderrors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
}
