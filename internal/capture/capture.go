// Package capture owns the recording work directory: it resets it, runs a
// recording session inside it and picks the capture file the session left.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Ext is the extension of the browser's raw capture files.
const Ext = ".webm"

// ErrNoArtifact means a session ended without leaving a capture file.
var ErrNoArtifact = errors.New("no capture file found")

// Artifact is one capture file.
type Artifact struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Session is a recording that flushes its capture file on Close.
type Session interface {
	Close() error
}

// Opener starts a recording session that writes into dir.
type Opener[S Session] func(ctx context.Context, dir string) (S, error)

// ResetDir deletes the regular files at the top level of dir and creates
// dir if it does not exist. Subdirectories are left alone. Paths that
// escape the working directory, the working directory itself or any of
// its ancestors are refused.
func ResetDir(dir string) error {
	clean := filepath.Clean(dir)
	if err := checkResettable(clean); err != nil {
		return err
	}
	if err := os.MkdirAll(clean, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(clean)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(clean, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear %s: %w", clean, err)
		}
	}
	return nil
}

func checkResettable(clean string) error {
	parent := ".." + string(filepath.Separator)
	if clean == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, parent) {
		return fmt.Errorf("refusing to reset %q", clean)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return err
	}
	abs = resolveLinks(abs)
	if abs == filepath.Dir(abs) {
		return fmt.Errorf("refusing to reset filesystem root %q", clean)
	}
	if home, err := os.UserHomeDir(); err == nil && abs == resolveLinks(filepath.Clean(home)) {
		return fmt.Errorf("refusing to reset home directory %q", clean)
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(abs, resolveLinks(wd)); err == nil && rel != ".." && !strings.HasPrefix(rel, parent) {
			return fmt.Errorf("refusing to reset %q: it contains the working directory", clean)
		}
	}
	return nil
}

// resolveLinks resolves symlinks in path when it exists.
func resolveLinks(path string) string {
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}
	return path
}

// Latest returns the most recently modified file in dir with extension ext
// and the number of candidates seen.
func Latest(dir, ext string) (Artifact, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Artifact{}, 0, err
	}

	var found []Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, Artifact{
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	if len(found) == 0 {
		return Artifact{}, 0, fmt.Errorf("%w in %s", ErrNoArtifact, dir)
	}

	// Newest first.
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ModTime.After(found[j].ModTime)
	})

	return found[0], len(found), nil
}

// Manager runs recording sessions in one work directory.
type Manager struct {
	Dir  string
	Ext  string
	Logf func(format string, args ...any)
}

func NewManager(dir string, logf func(string, ...any)) *Manager {
	return &Manager{Dir: dir, Ext: Ext, Logf: logf}
}

// Run resets the work directory, opens a session, hands it to run and
// closes it exactly once whatever run returns. On success it returns run's
// result and the newest capture file.
func Run[S Session, T any](ctx context.Context, m *Manager, open Opener[S], run func(context.Context, S) (T, error)) (T, Artifact, error) {
	var zero T

	if err := ResetDir(m.Dir); err != nil {
		return zero, Artifact{}, err
	}

	sess, err := open(ctx, m.Dir)
	if err != nil {
		return zero, Artifact{}, fmt.Errorf("open session: %w", err)
	}

	res, runErr := run(ctx, sess)
	if closeErr := sess.Close(); closeErr != nil {
		closeErr = fmt.Errorf("close session: %w", closeErr)
		if runErr != nil {
			return res, Artifact{}, errors.Join(runErr, closeErr)
		}
		return res, Artifact{}, closeErr
	}
	if runErr != nil {
		return res, Artifact{}, runErr
	}

	art, n, err := Latest(m.Dir, m.ext())
	if err != nil {
		return res, Artifact{}, err
	}
	if n > 1 && m.Logf != nil {
		m.Logf("[!] %d capture files in %s, using the newest: %s", n, m.Dir, filepath.Base(art.Path))
	}
	return res, art, nil
}

func (m *Manager) ext() string {
	if m.Ext == "" {
		return Ext
	}
	return m.Ext
}
