package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterSpacesSameHost(t *testing.T) {
	l := New(Config{Delay: 100 * time.Millisecond})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://grace.example/sermons?page=1"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://grace.example/sermons?page=2"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	l := New(Config{Delay: time.Second})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.example/"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://b.example/"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur > 100*time.Millisecond {
		t.Errorf("expected no wait for a new host, got %v", dur)
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 20 {
		if err := l.Wait(ctx, "https://grace.example/"); err != nil {
			t.Fatal(err)
		}
	}
	if dur := time.Since(start); dur > 100*time.Millisecond {
		t.Errorf("expected no limiting, took %v", dur)
	}
}

func TestLimiterCanceled(t *testing.T) {
	l := New(Config{Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx, "https://grace.example/"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://grace.example/"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
