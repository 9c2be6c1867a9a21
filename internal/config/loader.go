package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ebaygate/ebaygate/internal/errors"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading and hot-reloading.
type Loader struct {
	path     string
	mu       sync.RWMutex
	config   *Config
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		stopChan: make(chan struct{}),
	}
}

// Load reads the configuration from the file.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrConfigNotFound{Path: l.path}
		}
		return nil, err
	}

	content, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	content = substituteEnvVars(content)
	config, err := Parse(content)
	if err != nil {
		return nil, err
	}

	l.config = config
	return config, nil
}

// Reload forces a reload of the configuration and fires the change
// callback.
func (l *Loader) Reload() (*Config, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	onChange := l.onChange
	l.mu.RUnlock()

	if onChange != nil {
		onChange(config)
	}

	return config, nil
}

// Get returns the current configuration.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// SetOnChange sets a callback to be called when configuration changes.
func (l *Loader) SetOnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// StartWatcher watches the config file for writes and reloads on
// change. Watching the parent directory survives editors that replace
// the file instead of writing in place.
func (l *Loader) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return err
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go func() {
		// Small settle delay so a rename+write pair reloads once
		var pending *time.Timer
		target := filepath.Clean(l.path)
		for {
			select {
			case <-l.stopChan:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					if pending != nil {
						pending.Stop()
					}
					pending = time.AfterFunc(200*time.Millisecond, func() {
						_, _ = l.Reload()
					})
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

// StopWatcher stops the file watcher.
func (l *Loader) StopWatcher() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.mu.RLock()
		watcher := l.watcher
		l.mu.RUnlock()
		if watcher != nil {
			watcher.Close()
		}
	})
}

// MustLoad loads configuration or panics on error.
func MustLoad(path string) *Config {
	loader := NewLoader(path)
	config, err := loader.Load()
	if err != nil {
		panic(err)
	}
	return config
}

// Parse parses configuration from a byte slice, applying defaults
// before unmarshalling and validating after.
func Parse(data []byte) (*Config, error) {
	config := Config{
		Server: ServerConfig{
			HTTPPort:        8338,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
		API: APIConfig{
			KeyHeader: "X-API-Key",
		},
		Ebay: EbayConfig{
			Timeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Refresher: RefresherConfig{
			Schedule:    "0 */10 * * * *",
			Window:      30 * time.Minute,
			Concurrency: 5,
		},
		Cleanup: CleanupConfig{
			Interval:          time.Hour,
			AuditRetention:    30 * 24 * time.Hour,
			DeletedTokenGrace: 7 * 24 * time.Hour,
		},
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}

	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	return &config, nil
}

func substituteEnvVars(content []byte) []byte {
	return []byte(os.ExpandEnv(string(content)))
}
