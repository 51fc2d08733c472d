package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://grace.example/path", "grace.example"},
		{"standard https", "https://Grace.Example/sermons?page=2", "grace.example"},
		{"no scheme", "grace.example/path", "grace.example"},
		{"host with port", "grace.example:8080", "grace.example"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if pagesTotal == nil || itemsTotal == nil || downloadsTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveCounters(t *testing.T) {
	ObservePage("https://counters.example/sermons?page=1", "ok", 512)
	if val := testutil.ToFloat64(pagesTotal.WithLabelValues("counters.example", "ok")); val != 1 {
		t.Errorf("expected one page, got %f", val)
	}
	if val := testutil.ToFloat64(pageBytesTotal.WithLabelValues("counters.example")); val != 512 {
		t.Errorf("expected 512 bytes, got %f", val)
	}

	ObserveItem("counters", "parsed")
	ObserveItem("counters", "parsed")
	if val := testutil.ToFloat64(itemsTotal.WithLabelValues("counters", "parsed")); val != 2 {
		t.Errorf("expected two items, got %f", val)
	}

	before := testutil.ToFloat64(downloadBytesTotal)
	ObserveDownload("fetched-counters", 1024)
	if val := testutil.ToFloat64(downloadsTotal.WithLabelValues("fetched-counters")); val != 1 {
		t.Errorf("expected one download, got %f", val)
	}
	if val := testutil.ToFloat64(downloadBytesTotal) - before; val != 1024 {
		t.Errorf("expected 1024 download bytes, got %f", val)
	}

	ObserveTranscode("counters-ok")
	if val := testutil.ToFloat64(transcodesTotal.WithLabelValues("counters-ok")); val != 1 {
		t.Errorf("expected one transcode, got %f", val)
	}

	IncActiveJobs()
	IncActiveJobs()
	DecActiveJobs()
	if val := testutil.ToFloat64(activeJobs); val < 1 {
		t.Errorf("expected at least one active job, got %f", val)
	}
	DecActiveJobs()

	ObserveRateLimitDelay("counters.example", 200*time.Millisecond)
	if val := testutil.CollectAndCount(rateLimitDelaysSeconds); val <= 0 {
		t.Errorf("expected rate limit delay to be observed, got %d", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://grace.example", "https://cornerstone.example", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
