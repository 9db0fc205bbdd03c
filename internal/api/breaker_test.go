package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if err := b.Execute(failing); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected underlying error, got %v", i, err)
		}
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if b.State() != "open" {
		t.Errorf("State() = %q, want open", b.State())
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, 10*time.Second)
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errors.New("boom") })
	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}

	now = now.Add(11 * time.Second)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, 10*time.Second)
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })

	now = now.Add(11 * time.Second)
	_ = b.Execute(func() error { return errors.New("still down") })
	if b.State() != "open" {
		t.Errorf("State() = %q, want open after failed probe", b.State())
	}
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return fmt.Errorf("call: %w", context.Canceled) })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed", b.State())
	}
}

func TestBreaker_NilAndDisabled(t *testing.T) {
	var nilBreaker *Breaker
	if err := nilBreaker.Execute(func() error { return nil }); err != nil {
		t.Errorf("nil breaker should pass through, got %v", err)
	}

	disabled := NewBreaker(0, time.Minute)
	for i := 0; i < 5; i++ {
		_ = disabled.Execute(func() error { return errors.New("boom") })
	}
	if err := disabled.Execute(func() error { return nil }); err != nil {
		t.Errorf("disabled breaker should never open, got %v", err)
	}
}
