package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultWaitlistURL    = "https://flow-api.mira.network/v1/waitlist"
	defaultTimeoutSeconds = 30

	// The delay bounds shipped by the upstream script. Note that min > max:
	// Validate rejects this pair rather than guessing which bound was meant,
	// so a usable delay range has to be configured explicitly.
	defaultDelayMinSeconds = 2
	defaultDelayMaxSeconds = 0
)

type Config struct {
	Waitlist Waitlist `yaml:"waitlist"`
	Inputs   Inputs   `yaml:"inputs"`
	Output   Output   `yaml:"output"`
	Delay    Delay    `yaml:"delay"`
}

type Waitlist struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Inputs struct {
	Emails  string `yaml:"emails"`
	Proxies string `yaml:"proxies"`
}

type Output struct {
	Results string `yaml:"results"`
	Log     string `yaml:"log"`
}

// Delay bounds the randomized pause between submissions, in seconds.
type Delay struct {
	MinSeconds float64 `yaml:"min_seconds"`
	MaxSeconds float64 `yaml:"max_seconds"`
}

func Default() *Config {
	return &Config{
		Waitlist: Waitlist{
			URL:            defaultWaitlistURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Inputs: Inputs{
			Emails:  "emails.txt",
			Proxies: "proxies.txt",
		},
		Output: Output{
			Results: "results.txt",
			Log:     "waitlist_log.txt",
		},
		Delay: Delay{
			MinSeconds: defaultDelayMinSeconds,
			MaxSeconds: defaultDelayMaxSeconds,
		},
	}
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".waitroll", "config.yaml")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Waitlist.URL == "" {
		cfg.Waitlist.URL = defaultWaitlistURL
	}
	if cfg.Waitlist.TimeoutSeconds == 0 {
		cfg.Waitlist.TimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.Inputs.Emails == "" {
		cfg.Inputs.Emails = "emails.txt"
	}
	if cfg.Inputs.Proxies == "" {
		cfg.Inputs.Proxies = "proxies.txt"
	}
	if cfg.Output.Results == "" {
		cfg.Output.Results = "results.txt"
	}
	if cfg.Output.Log == "" {
		cfg.Output.Log = "waitlist_log.txt"
	}

	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Waitlist.URL == "" {
		return fmt.Errorf("waitlist: url is required")
	}
	u, err := url.Parse(c.Waitlist.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("waitlist: invalid url %q", c.Waitlist.URL)
	}
	if c.Waitlist.TimeoutSeconds <= 0 {
		return fmt.Errorf("waitlist: timeout_seconds must be positive")
	}
	if c.Inputs.Emails == "" {
		return fmt.Errorf("inputs: emails path is required")
	}
	if c.Output.Results == "" {
		return fmt.Errorf("output: results path is required")
	}
	if c.Output.Log == "" {
		return fmt.Errorf("output: log path is required")
	}
	if c.Delay.MinSeconds < 0 || c.Delay.MaxSeconds < 0 {
		return fmt.Errorf("delay: bounds must not be negative")
	}
	if c.Delay.MinSeconds > c.Delay.MaxSeconds {
		return fmt.Errorf("delay: min_seconds (%g) is greater than max_seconds (%g)",
			c.Delay.MinSeconds, c.Delay.MaxSeconds)
	}
	return nil
}
