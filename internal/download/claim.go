package download

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const breakerSuffix = ".break"

type claim struct {
	path  string
	token string
}

// acquireClaim creates the claim file exclusively. A claim older than
// staleAfter is broken and re-acquired.
func acquireClaim(name string, staleAfter time.Duration, now time.Time) (*claim, error) {
	c, err := createClaim(name, now)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, err
	}
	if !stale(name, staleAfter, now) {
		return nil, ErrClaimed
	}
	return breakClaim(name, staleAfter, now)
}

// breakClaim replaces a stale claim. Only the holder of the breaker file may
// remove a claim, and staleness is checked again while holding it.
func breakClaim(name string, staleAfter time.Duration, now time.Time) (*claim, error) {
	breaker := name + breakerSuffix
	b, err := createClaim(breaker, now)
	if err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		// A breaker left behind by a crashed worker is cleared for the next attempt.
		if stale(breaker, staleAfter, now) {
			_ = os.Remove(breaker)
		}
		return nil, ErrClaimed
	}
	defer func() { _ = b.release() }()

	if !stale(name, staleAfter, now) {
		return nil, ErrClaimed
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("break stale claim %s: %w", name, err)
	}
	c, err := createClaim(name, now)
	if errors.Is(err, fs.ErrExist) {
		return nil, ErrClaimed
	}
	return c, err
}

func createClaim(name string, now time.Time) (*claim, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create claim %s: %w", name, err)
	}
	token := uuid.NewString()
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + " " + token + " " + now.UTC().Format(time.RFC3339) + "\n")
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(name)
		return nil, fmt.Errorf("write claim %s: %w", name, errors.Join(werr, cerr))
	}
	return &claim{path: name, token: token}, nil
}

func stale(name string, staleAfter time.Duration, now time.Time) bool {
	if staleAfter <= 0 {
		return false
	}
	info, err := os.Stat(name)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return now.Sub(info.ModTime()) > staleAfter
}

// release removes the claim file if it still carries this claim's token.
func (c *claim) release() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("release claim %s: %w", c.path, err)
	}
	if !strings.Contains(string(data), c.token) {
		return fmt.Errorf("release claim %s: taken over by another worker", c.path)
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release claim %s: %w", c.path, err)
	}
	return nil
}
