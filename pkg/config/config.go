package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// RunMode distinguishes production from every other environment. Outside
// production, a configured test recipient redirects all outgoing mail.
const RunModeProduction = "production"

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs trusted for X-Forwarded-For headers
}

// Broker holds the Redis job-broker connection settings.
type Broker struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Mail configures the outbound mail provider. Either the Mailgun fields
// (APIKey + Domain) or the SMTP fields (Host + Port) must be set; startup
// fails otherwise.
type Mail struct {
	// Provider selects the sender implementation: "mailgun" or "smtp".
	// Empty means auto-detect from the credentials present.
	Provider string `yaml:"provider"`

	// Mailgun API credentials.
	APIKey string `yaml:"apiKey"`
	Domain string `yaml:"domain"`

	// SMTP relay settings.
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`

	// From is the default sender address. Falls back to noreply@<Domain>.
	From       string `yaml:"from"`
	SenderName string `yaml:"senderName"`
}

// Events configures the optional delivery event stream. Disabled when no
// brokers are listed.
type Events struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Worker struct {
	// Concurrency is the number of email jobs processed simultaneously.
	Concurrency int `yaml:"concurrency"`
	// RateLimitMax / RateLimitWindowMs cap dispatches per window. Zero
	// disables the worker rate limiter.
	RateLimitMax      int `yaml:"rateLimitMax"`
	RateLimitWindowMs int `yaml:"rateLimitWindowMs"`
}

type Config struct {
	Server Server `yaml:"server"`
	Broker Broker `yaml:"broker"`
	Mail   Mail   `yaml:"mail"`
	Events Events `yaml:"events"`
	Worker Worker `yaml:"worker"`

	// RunMode is "production" or any non-production environment name
	// (e.g. "staging", "development").
	RunMode string `yaml:"runMode"`
	// TestRecipient overrides every recipient outside production so the
	// delivery path can be exercised without emailing real users.
	TestRecipient string `yaml:"testRecipient"`
}

// Load reads the tripmailer configuration from a file path. If configPath is
// empty, defaults to "./config.yaml"; the TRIPMAILER_CONFIG_PATH environment
// variable overrides both.
func Load(configPath ...string) (Config, error) {
	path := "./config.yaml"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}
	if env := os.Getenv("TRIPMAILER_CONFIG_PATH"); env != "" {
		path = env
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open tripmailer config file %s: %v", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
	}
	return config, nil
}

// Defaults fills unset fields with sensible values and applies environment
// fallbacks for credentials that should not live in the config file.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Broker.Host == "" {
		c.Broker.Host = "localhost"
	}
	if c.Broker.Port == 0 {
		c.Broker.Port = 6379
	}
	if c.Broker.Prefix == "" {
		c.Broker.Prefix = "tripmailer"
	}
	if c.Mail.APIKey == "" {
		c.Mail.APIKey = os.Getenv("TRIPMAILER_MAILGUN_API_KEY")
	}
	if c.Mail.Password == "" {
		c.Mail.Password = os.Getenv("TRIPMAILER_SMTP_PASSWORD")
	}
	if c.Mail.From == "" && c.Mail.Domain != "" {
		c.Mail.From = "noreply@" + c.Mail.Domain
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "tripmailer.delivery"
	}
	if c.RunMode == "" {
		c.RunMode = "development"
	}
}

// Validate checks the configuration invariants that must hold before the
// process can start. Missing mail-provider credentials are fatal: the
// delivery worker must not start without a way to dispatch.
func (c Config) Validate() error {
	mailgun := c.Mail.APIKey != "" && c.Mail.Domain != ""
	smtp := c.Mail.Host != ""
	switch c.Mail.Provider {
	case "":
		if !mailgun && !smtp {
			return fmt.Errorf("mail provider credentials missing: set mail.apiKey+mail.domain or mail.host")
		}
	case "mailgun":
		if !mailgun {
			return fmt.Errorf("mail provider %q requires mail.apiKey and mail.domain", c.Mail.Provider)
		}
	case "smtp":
		if !smtp {
			return fmt.Errorf("mail provider %q requires mail.host", c.Mail.Provider)
		}
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}

	if c.Mail.From == "" {
		return fmt.Errorf("mail.from is required (or set mail.domain for the noreply fallback)")
	}
	return nil
}

// IsProduction reports whether the process runs in production mode.
func (c Config) IsProduction() bool {
	return c.RunMode == RunModeProduction
}
