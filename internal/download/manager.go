package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cavaliercoder/grab"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/dispatch"
	"github.com/JakeFAU/sermon-harvester/internal/metrics"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// Action summarises what Fetch did for one record.
type Action string

const (
	ActionSkipped    Action = "skipped"
	ActionPresent    Action = "present"
	ActionDownloaded Action = "downloaded"
	ActionResumed    Action = "resumed"
	ActionFailed     Action = "failed"
)

// Outcome reports the result of fetching one record.
type Outcome struct {
	Name   string
	Page   string
	Path   string
	Action Action
	State  State
	Bytes  int64
	// Transcoded is set when a compressed sibling was produced in this call.
	Transcoded   bool
	TranscodeErr error
	Err          error
}

// Manager downloads audio for records into Dir.
type Manager struct {
	Dir             string
	Extensions      []string
	Continue        bool
	Transcode       bool
	Transcoder      Transcoder
	StaleClaimAfter time.Duration
	Client          *grab.Client
	Executor        dispatch.Executor
	Logger          *zap.Logger
	Now             func() time.Time
}

// Paths returns the files rec maps to.
func (m *Manager) Paths(rec sermon.Record) Paths {
	return PathsFor(m.Dir, rec, m.Extensions)
}

// State derives the download state of rec.
func (m *Manager) State(rec sermon.Record) State {
	if BaseName(rec.Name) == "" {
		return StateAbsent
	}
	return StateOf(m.Paths(rec))
}

// Run fetches every record carrying audio and returns one outcome per
// queued record, in input order. Records without audio are never queued.
func (m *Manager) Run(ctx context.Context, records []sermon.Record) []Outcome {
	queued := sermon.Table{Records: records}.WithAudio()
	exec := m.Executor
	if exec == nil {
		exec = &dispatch.Sequential{}
	}
	results := dispatch.Map(ctx, exec, queued, func(ctx context.Context, rec sermon.Record) (Outcome, error) {
		out := m.Fetch(ctx, rec)
		return out, out.Err
	})

	outcomes := make([]Outcome, len(results))
	counts := make(map[Action]int)
	for i, res := range results {
		out := res.Value
		if out.Action == "" {
			out = Outcome{Name: queued[i].Name, Page: queued[i].Page, Action: ActionFailed, Err: res.Err}
		}
		outcomes[i] = out
		counts[out.Action]++
	}
	m.logger().Info("downloads finished",
		zap.Int("queued", len(queued)),
		zap.Int("skipped_without_audio", len(records)-len(queued)),
		zap.Int("downloaded", counts[ActionDownloaded]+counts[ActionResumed]),
		zap.Int("present", counts[ActionPresent]),
		zap.Int("skipped", counts[ActionSkipped]),
		zap.Int("failed", counts[ActionFailed]),
	)
	return outcomes
}

// Fetch drives one record through the download state machine. A final file
// that already exists is left alone without any network call.
func (m *Manager) Fetch(ctx context.Context, rec sermon.Record) Outcome {
	out := Outcome{Name: rec.Name, Page: rec.Page}
	if !rec.HasAudio() {
		out.Action, out.Err = ActionSkipped, ErrNoAudio
		return out
	}
	if BaseName(rec.Name) == "" {
		out.Action, out.Err = ActionFailed, ErrNoName
		metrics.ObserveDownload(string(ActionFailed), 0)
		return out
	}
	logger := m.logger().With(zap.String("name", rec.Name), zap.String("audio", rec.Audio))
	paths := m.Paths(rec)
	out.Path = paths.Final

	if err := os.MkdirAll(m.Dir, 0o750); err != nil {
		return m.fail(out, fmt.Errorf("create download dir %s: %w", m.Dir, err))
	}
	if exists(paths.Final) {
		out.Action = ActionPresent
		m.compress(ctx, logger, paths, &out)
		metrics.ObserveDownload(string(out.Action), 0)
		return out
	}

	c, err := acquireClaim(paths.Claim, m.StaleClaimAfter, m.now())
	if err != nil {
		if errors.Is(err, ErrClaimed) {
			logger.Info("download claimed elsewhere", zap.String("claim", paths.Claim))
			out.Action, out.Err, out.State = ActionSkipped, err, StateOf(paths)
			metrics.ObserveDownload(string(ActionSkipped), 0)
			return out
		}
		return m.fail(out, err)
	}
	defer func() {
		if err := c.release(); err != nil {
			logger.Warn("release claim failed", zap.Error(err))
		}
	}()

	// Another worker may have finished between the first check and the claim.
	if exists(paths.Final) {
		out.Action = ActionPresent
		m.compress(ctx, logger, paths, &out)
		metrics.ObserveDownload(string(out.Action), 0)
		return out
	}

	resume := m.Continue && exists(paths.Partial)
	logger.Info("download command issued",
		zap.String("path", paths.Partial),
		zap.Bool("resume", resume),
	)
	transferred, resumed, err := m.transfer(ctx, rec.Audio, paths.Partial, resume)
	if err != nil {
		return m.fail(out, err)
	}
	if err := os.Rename(paths.Partial, paths.Final); err != nil {
		return m.fail(out, fmt.Errorf("finalize %s: %w", paths.Final, err))
	}
	out.Action, out.Bytes = ActionDownloaded, transferred
	if resumed {
		out.Action = ActionResumed
	}
	metrics.ObserveDownload(string(out.Action), transferred)
	logger.Info("download complete", zap.String("path", paths.Final), zap.Int64("bytes", transferred), zap.Bool("resumed", resumed))

	m.compress(ctx, logger, paths, &out)
	return out
}

func (m *Manager) transfer(ctx context.Context, audioURL, dst string, resume bool) (int64, bool, error) {
	client := m.Client
	if client == nil {
		client = grab.NewClient()
	}
	req, err := grab.NewRequest(dst, audioURL)
	if err != nil {
		return 0, false, fmt.Errorf("build download request: %w", err)
	}
	req.NoResume = !resume
	if !resume {
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return 0, false, fmt.Errorf("reset partial %s: %w", dst, err)
		}
	}
	resp := client.Do(req.WithContext(ctx))
	if err := resp.Err(); err != nil {
		return resp.BytesComplete(), false, fmt.Errorf("download %s: %w", audioURL, err)
	}
	return resp.BytesComplete(), resp.DidResume, nil
}

// compress runs the transcoder when enabled and the sibling is missing.
// Failures are recorded on the outcome and never fail the download.
func (m *Manager) compress(ctx context.Context, logger *zap.Logger, paths Paths, out *Outcome) {
	defer func() { out.State = StateOf(paths) }()
	if !m.Transcode || m.Transcoder == nil || exists(paths.Compressed) {
		return
	}
	if err := m.Transcoder.Transcode(ctx, paths.Final, paths.Compressed); err != nil {
		logger.Warn("transcode failed", zap.Error(err))
		out.TranscodeErr = err
		metrics.ObserveTranscode("error")
		return
	}
	out.Transcoded = true
	metrics.ObserveTranscode("ok")
}

func (m *Manager) fail(out Outcome, err error) Outcome {
	m.logger().Warn("download failed", zap.String("name", out.Name), zap.Error(err))
	out.Action, out.Err = ActionFailed, err
	if out.Path != "" {
		out.State = stateFromFinal(out.Path)
	}
	metrics.ObserveDownload(string(ActionFailed), 0)
	return out
}

func stateFromFinal(final string) State {
	switch {
	case exists(final):
		return StateComplete
	case exists(final + partialSuffix):
		return StateInProgress
	default:
		return StateAbsent
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger.Named("download")
}
