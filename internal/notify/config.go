// Package notify fans newly created alerts out to webhooks and a Kafka topic.
package notify

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WebhookConfig defines a webhook destination.
type WebhookConfig struct {
	URL        string            `yaml:"url"        json:"url"`
	Format     string            `yaml:"format"     json:"format"`     // "generic", "slack", "pagerduty"
	Priorities []string          `yaml:"priorities" json:"priorities"` // empty = every priority
	Headers    map[string]string `yaml:"headers"    json:"headers"`
	Timeout    time.Duration     `yaml:"timeout"    json:"timeout,omitempty"`  // per attempt, default 5s
	Attempts   int               `yaml:"attempts"   json:"attempts,omitempty"` // default 3
}

// KafkaConfig enables publishing alert events to a topic.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic"   json:"topic"`
}

// Enabled reports whether enough is set to publish.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// Config is the notifier file format.
type Config struct {
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks"`
	Kafka    KafkaConfig     `yaml:"kafka"    json:"kafka"`
}

// LoadConfig reads a notifier config file. A missing file or empty path
// yields an empty config (no notifications).
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("notify: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("notify: parse %s: %w", path, err)
	}
	for i, w := range cfg.Webhooks {
		if w.URL == "" {
			return cfg, fmt.Errorf("notify: webhook %d: url is required", i)
		}
		if w.Timeout < 0 || w.Attempts < 0 {
			return cfg, fmt.Errorf("notify: webhook %d: timeout and attempts must not be negative", i)
		}
	}
	return cfg, nil
}

func (w WebhookConfig) matches(priority string) bool {
	if len(w.Priorities) == 0 {
		return true
	}
	for _, p := range w.Priorities {
		if p == priority {
			return true
		}
	}
	return false
}
