package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Store is a flat dotted-key view of the configuration. Writes go straight
// to the config file.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	file string

	modTime time.Time
	size    int64
}

func newStore(v *viper.Viper, file string) *Store {
	s := &Store{v: v, file: file}
	if info, err := os.Stat(file); err == nil {
		s.modTime, s.size = info.ModTime(), info.Size()
	}
	return s
}

// Lookup returns the value stored under key
func (s *Store) Lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.v.IsSet(key) {
		return nil, false
	}
	return s.v.Get(key), true
}

// Set stores value under key in the config file. Only keys already in the
// file and key itself are written, never defaults.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := viper.New()
	w.SetConfigFile(s.file)
	if _, err := os.Stat(s.file); err == nil {
		if err := w.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", s.file, err)
		}
	}

	w.Set(key, value)
	if err := w.WriteConfigAs(s.file); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.file, err)
	}

	return s.readLocked()
}

// Reload re-reads the config file if it changed on disk since the last
// read or write
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.file)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", s.file, err)
	}
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return false, nil
	}

	if err := s.readLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// readLocked re-reads the file and records its stamp (must be called with lock held)
func (s *Store) readLocked() error {
	s.v.SetConfigFile(s.file)
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.file, err)
	}
	if info, err := os.Stat(s.file); err == nil {
		s.modTime, s.size = info.ModTime(), info.Size()
	}
	return nil
}
