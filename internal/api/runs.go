package api

import (
	"sync"
	"time"
)

// Run summarises one harvest or download run.
type Run struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Source   string    `json:"source,omitempty"`
	Entry    string    `json:"entry,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Records  int       `json:"records"`
	Failures int       `json:"failures"`
	Error    string    `json:"error,omitempty"`
}

// RunLog keeps the last few runs in memory, newest first.
type RunLog struct {
	mu   sync.Mutex
	size int
	runs []Run
}

// NewRunLog returns a log holding at most size runs.
func NewRunLog(size int) *RunLog {
	if size <= 0 {
		size = 50
	}
	return &RunLog{size: size}
}

// Add records a finished run.
func (l *RunLog) Add(run Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append([]Run{run}, l.runs...)
	if len(l.runs) > l.size {
		l.runs = l.runs[:l.size]
	}
}

// Recent returns a copy of the logged runs.
func (l *RunLog) Recent() []Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Run(nil), l.runs...)
}
