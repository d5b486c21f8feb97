// Package prefs persists the user-editable tool environment settings.
//
// Each call site takes a Snapshot and treats it as immutable for the run it
// configures, so concurrent edits never change a run in flight.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/wrapctl/internal/envexec"
)

const (
	DefaultStardistEnvDir  = "C:/Users/username/.conda/envs/stardist"
	DefaultStardistEnvType = "conda"
	DefaultTransformixExe  = "transformix"
)

var ErrInvalidPreference = errors.New("prefs: invalid preference")

// Preferences mirrors the persisted file.
type Preferences struct {
	StardistEnvDir     string `toml:"stardist_env_dir"`
	StardistEnvType    string `toml:"stardist_env_type"`
	TransformixExePath string `toml:"transformix_exe_path"`
}

func Defaults() Preferences {
	return Preferences{
		StardistEnvDir:     DefaultStardistEnvDir,
		StardistEnvType:    DefaultStardistEnvType,
		TransformixExePath: DefaultTransformixExe,
	}
}

// StardistEnvironment resolves the configured StarDist environment.
func (p Preferences) StardistEnvironment() (envexec.Environment, error) {
	return envexec.ParseEnvType(p.StardistEnvType, p.StardistEnvDir)
}

// Store guards the current preferences and their backing file. An empty path
// keeps the store in memory only.
type Store struct {
	path    string
	mu      sync.RWMutex
	current Preferences
}

// Open loads path over the defaults. A missing file yields the defaults.
func Open(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path), current: Defaults()}
	if s.path == "" {
		return s, nil
	}
	loaded, err := load(s.path, s.current)
	if err != nil {
		return nil, err
	}
	s.current = loaded
	return s, nil
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore(p Preferences) *Store {
	return &Store{current: p}
}

func load(path string, base Preferences) (Preferences, error) {
	var raw Preferences
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences (%s): %w", path, err)
	}

	out := base
	if meta.IsDefined("stardist_env_dir") {
		out.StardistEnvDir = strings.TrimSpace(raw.StardistEnvDir)
	}
	if meta.IsDefined("stardist_env_type") {
		out.StardistEnvType = strings.TrimSpace(raw.StardistEnvType)
	}
	if meta.IsDefined("transformix_exe_path") {
		out.TransformixExePath = strings.TrimSpace(raw.TransformixExePath)
	}
	return out, nil
}

func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a copy of the current preferences.
func (s *Store) Snapshot() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetStardistEnvDir stores dir as an absolute path and persists it.
func (s *Store) SetStardistEnvDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("%w: empty stardist environment directory", ErrInvalidPreference)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return s.update(func(p *Preferences) { p.StardistEnvDir = abs })
}

// SetStardistEnvType accepts "conda" or "venv" and persists it.
func (s *Store) SetStardistEnvType(envType string) error {
	env, err := envexec.ParseEnvType(envType, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPreference, err)
	}
	return s.update(func(p *Preferences) { p.StardistEnvType = string(env.Style) })
}

// SetTransformixExePath stores path as an absolute path and persists it.
func (s *Store) SetTransformixExePath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: empty transformix executable path", ErrInvalidPreference)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return s.update(func(p *Preferences) { p.TransformixExePath = abs })
}

// NotifyTransformixInPath resolves transformix through PATH from now on.
func (s *Store) NotifyTransformixInPath() error {
	return s.update(func(p *Preferences) { p.TransformixExePath = DefaultTransformixExe })
}

func (s *Store) update(apply func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	apply(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// Save writes the current preferences to the backing file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.current)
}

func (s *Store) write(p Preferences) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("save preferences (%s): %w", s.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("save preferences (%s): %w", s.path, err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
