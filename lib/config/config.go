// Package config reads and writes the line-oriented key=value
// configuration files filemass uses on disk (fmrepo.conf): blank lines
// and '#' comments are ignored and whitespace around keys and values is
// trimmed. Lines follow .properties rules, so ':' or whitespace also
// separate a key from its value, and a line holding only a key sets
// that key to the empty string rather than failing.
//
// The format is binding (see spec §4.3, §6), so rather than pulling in
// the YAML/JSON-oriented viper stack the rest of the ambient config
// layer is grounded on, this reads it with magiconair/properties, which
// already speaks exactly this grammar and is pulled transitively into
// the same dependency graph via viper.
package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/magiconair/properties"
)

// Store is a cached, mutex-guarded handle on one key=value config file.
// Reads go through an atomically-cached snapshot; writes are
// serialized and refresh the cache before returning.
type Store struct {
	path string

	cached atomic.Value // stores *properties.Properties
	loaded sync.Once
	loadErr error

	writeMu sync.Mutex
}

// Load opens an existing config file at path. The file must already
// exist; use Create to initialize a new one.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Create initializes a new config file at path with the given initial
// key=value pairs (in iteration order is not guaranteed; callers that
// care about ordering should pass a single pair at a time and call Set
// repeatedly). It fails if the file already exists.
func Create(path string, initial map[string]string) (*Store, error) {
	p := properties.NewProperties()
	for k, v := range initial {
		if _, _, err := p.Set(k, v); err != nil {
			return nil, fmt.Errorf("config: setting default %q: %w", k, err)
		}
	}

	f, err := createExclusive(path)
	if err != nil {
		return nil, fmt.Errorf("config: creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := p.Write(f, properties.UTF8); err != nil {
		return nil, fmt.Errorf("config: writing %s: %w", path, err)
	}

	s := &Store{path: path}
	s.cached.Store(p)
	return s, nil
}

func (s *Store) reload() error {
	p, err := properties.LoadFile(s.path, properties.UTF8)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", s.path, err)
	}
	s.cached.Store(p)
	return nil
}

func (s *Store) props() (*properties.Properties, error) {
	if p := s.cached.Load(); p != nil {
		return p.(*properties.Properties), nil
	}
	s.loaded.Do(func() {
		s.loadErr = s.reload()
	})
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.cached.Load().(*properties.Properties), nil
}

// Get returns the value for key, or ok == false if it is not set.
func (s *Store) Get(key string) (string, bool, error) {
	p, err := s.props()
	if err != nil {
		return "", false, err
	}
	v, ok := p.Get(key)
	return v, ok, nil
}

// MustGet returns the value for key, or an error naming the missing key.
func (s *Store) MustGet(key string) (string, error) {
	v, ok, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("config: missing required key %q in %s", key, s.path)
	}
	return v, nil
}

// Set updates key to value and persists the change to disk immediately.
func (s *Store) Set(key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p, err := s.props()
	if err != nil {
		return err
	}
	if _, _, err := p.Set(key, value); err != nil {
		return fmt.Errorf("config: setting %q: %w", key, err)
	}

	f, err := createTruncate(s.path)
	if err != nil {
		return fmt.Errorf("config: rewriting %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := p.Write(f, properties.UTF8); err != nil {
		return fmt.Errorf("config: writing %s: %w", s.path, err)
	}

	s.cached.Store(p)
	return nil
}
