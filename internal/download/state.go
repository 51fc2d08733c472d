// Package download fetches the audio behind catalog records into a local
// directory, resuming partial transfers and optionally transcoding them.
package download

import (
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

// State is derived from the files present for a record.
type State string

const (
	StateAbsent     State = "absent"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
	StateCompressed State = "compressed"
)

const (
	partialSuffix    = ".part"
	claimSuffix      = ".lock"
	compressedSuffix = " - Compressed"
	defaultExtension = ".mp3"

	// maxBaseBytes keeps "<base> - Compressed<ext>.part" within a 255-byte file name.
	maxBaseBytes = 200
)

var (
	// ErrNoAudio marks records without an audio URL.
	ErrNoAudio = errors.New("record has no audio url")
	// ErrNoName marks records whose filename was never synthesized.
	ErrNoName = errors.New("record has no file name")
	// ErrClaimed means another worker holds the claim on the target file.
	ErrClaimed = errors.New("download claimed by another worker")
)

// Paths lists every file a record can produce.
type Paths struct {
	Final      string
	Partial    string
	Claim      string
	Compressed string
}

// Extension picks the file extension for an audio URL: the URL's own
// extension when it is allowed, otherwise the first allowed one.
func Extension(audioURL string, allowed []string) string {
	fallback := defaultExtension
	if len(allowed) > 0 {
		fallback = strings.ToLower(allowed[0])
	}
	u, err := url.Parse(strings.TrimSpace(audioURL))
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, candidate := range allowed {
		if ext != "" && ext == strings.ToLower(candidate) {
			return ext
		}
	}
	return fallback
}

// BaseName turns a record name into a single file name component: path
// separators and control characters are replaced, surrounding spaces and dots
// trimmed, and the result cut to maxBaseBytes on a rune boundary. An empty
// result means the record cannot be stored.
func BaseName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, name)
	clean = strings.Trim(clean, " .")
	if len(clean) > maxBaseBytes {
		cut := maxBaseBytes
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = strings.TrimRight(clean[:cut], " .")
	}
	return clean
}

// PathsFor returns the paths of rec under dir.
func PathsFor(dir string, rec sermon.Record, allowed []string) Paths {
	ext := Extension(rec.Audio, allowed)
	base := BaseName(rec.Name)
	final := filepath.Join(dir, base+ext)
	return Paths{
		Final:      final,
		Partial:    final + partialSuffix,
		Claim:      final + claimSuffix,
		Compressed: filepath.Join(dir, base+compressedSuffix+ext),
	}
}

// StateOf derives the state from the filesystem.
func StateOf(p Paths) State {
	switch {
	case exists(p.Compressed):
		return StateCompressed
	case exists(p.Final):
		return StateComplete
	case exists(p.Partial):
		return StateInProgress
	default:
		return StateAbsent
	}
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
