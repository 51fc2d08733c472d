package download

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
	"go.uber.org/zap"
)

// Transcoder turns a downloaded file into its compressed sibling.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpeg transcodes to mono 16 kHz audio with the ffmpeg binary.
type FFmpeg struct {
	Path   string
	Logger *zap.Logger
}

// Args returns the ffmpeg arguments used to write src into out.
func (f FFmpeg) Args(src, out string) []string {
	return []string{"-nostdin", "-threads", "0", "-y", "-i", src, "-ac", "1", "-ar", "16000", out}
}

// Transcode writes dst through a temporary file in the same directory.
func (f FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ext := filepath.Ext(dst)
	tmp := strings.TrimSuffix(dst, ext) + ".tmp" + ext
	args := f.Args(src, tmp)

	logger.Info("transcode command issued", zap.String("command", shellescape.QuoteCommand(append([]string{bin}, args...))))
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ffmpeg %s: %w: %s", src, err, lastLine(output.String()))
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename transcoded file: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
