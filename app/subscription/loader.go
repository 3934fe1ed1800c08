// Package subscription loads YAML seed files describing feeds the service
// should subscribe to at startup.
package subscription

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Subscription struct {
	URL        string   `yaml:"url"`
	Alias      string   `yaml:"alias"`
	Categories []string `yaml:"categories"`
}

type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadAll reads every .yml/.yaml file in the feeds directory. A missing
// directory is not an error; seeds are optional.
func (l *Loader) LoadAll() ([]Subscription, error) {
	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds directory: %w", err)
	}

	var subscriptions []Subscription
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		subscription, err := l.loadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			slog.Warn("Skipping invalid subscription file", "file", entry.Name(), "error", err)
			continue
		}
		subscriptions = append(subscriptions, *subscription)
	}

	return subscriptions, nil
}

func (l *Loader) loadFile(path string) (*Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var subscription Subscription
	if err := yaml.Unmarshal(data, &subscription); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if subscription.URL == "" {
		return nil, fmt.Errorf("subscription is missing a url")
	}

	return &subscription, nil
}
