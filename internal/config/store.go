package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Observer is told about every reload that changed the configuration.
type Observer func(old, new *Config)

// Option configures a Store.
type Option func(*Store)

// WithPath sets the configuration file. A leading ~ is expanded.
func WithPath(path string) Option {
	return func(s *Store) {
		s.path = path
	}
}

// WithEnvFile sets the dotenv file. By default it is .env next to the
// configuration file.
func WithEnvFile(path string) Option {
	return func(s *Store) {
		s.envFile = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reloading.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// Store holds the current configuration.
type Store struct {
	mu       sync.RWMutex
	path     string
	envFile  string
	logger   *zap.Logger
	debounce time.Duration

	current   *Config
	observers map[uint64]Observer
	nextID    uint64

	watcher *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// Load reads the configuration layers and returns a store holding the
// result.
func Load(opts ...Option) (*Store, error) {
	s := &Store{
		logger:    zap.NewNop(),
		debounce:  100 * time.Millisecond,
		observers: make(map[uint64]Observer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("config")

	if s.path == "" {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		s.path = path
	}
	path, err := homedir.Expand(s.path)
	if err != nil {
		return nil, err
	}
	if s.path, err = filepath.Abs(path); err != nil {
		return nil, err
	}
	if s.envFile == "" {
		s.envFile = filepath.Join(filepath.Dir(s.path), DefaultEnvFile)
	} else if s.envFile, err = homedir.Expand(s.envFile); err != nil {
		return nil, err
	}

	cfg, unknown, err := build(s.path, s.envFile, EnvPrefix)
	if err != nil {
		return nil, err
	}
	s.warnUnknown(unknown)
	s.current = cfg
	return s, nil
}

// Path returns the absolute configuration file path.
func (s *Store) Path() string {
	return s.path
}

// Config returns a copy of the current configuration.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn Observer) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Reload re-reads every layer. On failure the current configuration stays
// in place. Observers run when the result differs from it.
func (s *Store) Reload() error {
	cfg, unknown, err := build(s.path, s.envFile, EnvPrefix)
	if err != nil {
		return err
	}
	s.warnUnknown(unknown)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	old := s.current
	if reflect.DeepEqual(old, cfg) {
		s.mu.Unlock()
		return nil
	}
	s.current = cfg
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	s.logger.Info("configuration reloaded", zap.String("path", s.path))
	for _, fn := range observers {
		fn(old.Clone(), cfg.Clone())
	}
	return nil
}

// Watch reloads the configuration whenever the configuration file or the
// dotenv file changes. The directory holding the file must exist.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files on save, so watch the directories.
	dirs := map[string]bool{filepath.Dir(s.path): true, filepath.Dir(s.envFile): true}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	s.watcher = w
	s.wg.Add(1)
	go s.watchLoop(w)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if s.relevant(ev) {
				s.schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (s *Store) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == s.path || name == filepath.Clean(s.envFile)
}

func (s *Store) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Reload(); err != nil && err != ErrStoreClosed {
			s.logger.Warn("configuration reload failed, keeping previous values", zap.Error(err))
		}
	})
}

func (s *Store) warnUnknown(names []string) {
	for _, name := range names {
		s.logger.Warn("ignoring unknown setting", zap.String("env", name))
	}
}

// Close stops watching. The last configuration stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	w := s.watcher
	close(s.done)
	s.mu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
	}
	s.wg.Wait()
	return err
}
