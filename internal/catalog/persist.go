package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// Persister is the hand-off point of an adapter run.
type Persister interface {
	Persist(ctx context.Context, table sermon.Table) (Receipt, error)
}

// BlobStore writes a rendered table file and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// RecordStore upserts records keyed by their page URL.
type RecordStore interface {
	UpsertRecords(ctx context.Context, runID string, records []sermon.Record) (int64, error)
}

// Publisher announces a written table to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Notice is the payload published after a table is written.
type Notice struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	URIs      []string  `json:"uris"`
	WrittenAt time.Time `json:"written_at"`
}

// Receipt summarizes one Persist call.
type Receipt struct {
	RunID     string
	File      string
	URIs      []string
	Upserted  int64
	MessageID string
}

// Writer renders a table once and fans it out to the configured stores. The
// first blob store is the primary; failures there abort, later stores are
// mirrors whose failures are logged.
type Writer struct {
	Blobs     []BlobStore
	Records   RecordStore
	Publisher Publisher
	Topic     string
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Persist implements Persister.
func (w *Writer) Persist(ctx context.Context, table sermon.Table) (Receipt, error) {
	if len(w.Blobs) == 0 {
		return Receipt{}, errors.New("catalog writer has no blob store")
	}
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := w.IDs.NewID()
	if err != nil {
		return Receipt{}, fmt.Errorf("run id: %w", err)
	}
	now := w.Clock.Now()
	receipt := Receipt{RunID: runID, File: FileName(table.Source, now)}

	var buf bytes.Buffer
	if err := Write(&buf, table.Records); err != nil {
		return receipt, err
	}
	for i, store := range w.Blobs {
		uri, err := store.PutObject(ctx, receipt.File, ContentType, buf.Bytes())
		if err != nil {
			if i == 0 {
				return receipt, fmt.Errorf("write table %s: %w", receipt.File, err)
			}
			logger.Warn("table mirror failed", zap.String("file", receipt.File), zap.Error(err))
			continue
		}
		receipt.URIs = append(receipt.URIs, uri)
	}

	if w.Records != nil {
		n, err := w.Records.UpsertRecords(ctx, runID, table.Records)
		if err != nil {
			logger.Warn("record upsert failed", zap.String("run_id", runID), zap.Error(err))
		}
		receipt.Upserted = n
	}

	if w.Publisher != nil {
		notice := Notice{RunID: runID, Source: table.Source, Rows: table.Len(), URIs: receipt.URIs, WrittenAt: now}
		id, err := w.Publisher.Publish(ctx, w.Topic, notice)
		if err != nil {
			logger.Warn("hand-off notice failed", zap.String("run_id", runID), zap.Error(err))
		}
		receipt.MessageID = id
	}

	logger.Info("catalog table written",
		zap.String("run_id", runID),
		zap.String("source", table.Source),
		zap.Int("rows", table.Len()),
		zap.Strings("uris", receipt.URIs))
	return receipt, nil
}
