package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const (
	keyWebhookURL  = "webhook_url"
	keyDebugOutput = "debug_output"
)

// Settings are the user-editable key-value preferences persisted next to
// the process. They are read at use time, so edits apply immediately.
type Settings struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault(keyWebhookURL, "")
	v.SetDefault(keyDebugOutput, false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return &Settings{v: v, path: path}, nil
}

func (s *Settings) WebhookURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(keyWebhookURL)
}

func (s *Settings) DebugOutput() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(keyDebugOutput)
}

func (s *Settings) SetWebhookURL(url string) error {
	return s.set(keyWebhookURL, url)
}

func (s *Settings) SetDebugOutput(enabled bool) error {
	return s.set(keyDebugOutput, enabled)
}

func (s *Settings) set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return s.v.WriteConfigAs(s.path)
}
