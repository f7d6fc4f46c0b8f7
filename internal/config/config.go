// Package config loads the receiver's YAML configuration and watches it
// for live edits, publishing each successful reload as a new snapshot in a
// Store. The receiver does not read the Store: its window, TTL and poll
// slice are the protocol constants, and cmd/blobrecv takes only the
// endpoint and metrics address from the file, once at startup.
package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the receiver's tunable surface. Zero values are replaced with
// protocol defaults by normalize.
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	ChunkSize   int           `yaml:"chunk_size"`
	WindowSize  int           `yaml:"window_size"`
	BlobTTL     time.Duration `yaml:"blob_ttl"`
	PollSlice   time.Duration `yaml:"poll_slice"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// Load reads and parses path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.normalize()
	return &c, nil
}

func (c *Config) normalize() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 10_000_000
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 10
	}
	if c.BlobTTL <= 0 {
		c.BlobTTL = 10 * time.Second
	}
	if c.PollSlice <= 0 {
		c.PollSlice = 50 * time.Millisecond
	}
}

// Store holds the most recently loaded Config behind an atomic pointer so
// the receiver loop can read it without locking while a Watcher swaps it
// out in the background.
type Store struct {
	v atomic.Pointer[Config]
}

// NewStore creates a Store seeded with initial.
func NewStore(initial *Config) *Store {
	s := &Store{}
	s.v.Store(initial)
	return s
}

// Get returns the current config snapshot.
func (s *Store) Get() *Config { return s.v.Load() }

func (s *Store) set(c *Config) { s.v.Store(c) }

// Watcher reloads a Config from disk whenever the underlying file changes
// and publishes it into a Store.
type Watcher struct {
	path    string
	store   *Store
	fsw     *fsnotify.Watcher
	onError func(error)
	done    chan struct{}
}

// WatchFile starts watching path for writes and rewrites store's contents
// on every change. onError, if non-nil, is invoked with reload failures
// (a bad edit does not tear down the watcher or discard the last-good
// config).
func WatchFile(path string, store *Store, onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{path: path, store: store, fsw: fsw, onError: onError, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c, err := Load(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.store.set(c)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close stops the watcher goroutine.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
