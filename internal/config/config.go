// Package config loads the application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Broker  BrokerConfig  `yaml:"broker"`
	Elastic ElasticConfig `yaml:"elastic"`
	Index   IndexConfig   `yaml:"index"`
	Indexer IndexerConfig `yaml:"indexer"`
	Rebuild RebuildConfig `yaml:"rebuild"`
	Admin   AdminConfig   `yaml:"admin"`
}

// HTTPConfig holds the REST gateway settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MongoConfig holds the system-of-record connection settings.
type MongoConfig struct {
	URI       string `yaml:"uri"`
	Database  string `yaml:"database"`
	Questions string `yaml:"questions_collection"`
	Answers   string `yaml:"answers_collection"`
}

// BrokerConfig selects and configures the change-event channel.
type BrokerConfig struct {
	// Kind is "nats" or "memory". Memory is only useful for a single
	// process carrying both the write path and the indexer.
	Kind string `yaml:"kind"`

	// URL is the NATS server URL, ignored for the memory broker.
	URL string `yaml:"url"`

	// Stream is the JetStream stream name for change events.
	Stream string `yaml:"stream"`
}

// ElasticConfig holds the search engine connection settings.
type ElasticConfig struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// IndexConfig describes the logical search index.
type IndexConfig struct {
	// BaseName is both the alias queried at runtime and the prefix of
	// every physical generation name.
	BaseName string `yaml:"base_name"`
}

// IndexerConfig tunes the real-time indexer worker pool.
type IndexerConfig struct {
	Workers        int           `yaml:"workers"`
	ChannelBufSize int           `yaml:"channel_buf_size"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	ConsumerName   string        `yaml:"consumer_name"`
}

// RebuildConfig tunes the bulk rebuild orchestrator.
type RebuildConfig struct {
	PageSize int `yaml:"page_size"`

	// Keep is how many generations to retain besides the aliased one.
	Keep int `yaml:"keep"`
}

// AdminConfig guards the operator endpoints.
type AdminConfig struct {
	// JWTSecret is the HS256 key admin bearer tokens must be signed with.
	JWTSecret string `yaml:"jwt_secret"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Logging: DefaultLoggingConfig(),
		HTTP:    HTTPConfig{Addr: ":8080"},
		Mongo: MongoConfig{
			URI:       "mongodb://localhost:27017",
			Database:  "forum",
			Questions: "questions",
			Answers:   "answers",
		},
		Broker: BrokerConfig{
			Kind:   "nats",
			URL:    "nats://localhost:4222",
			Stream: "CHANGES",
		},
		Elastic: ElasticConfig{
			URL:            "http://localhost:9200",
			RequestTimeout: 15 * time.Second,
		},
		Index: IndexConfig{BaseName: "questions"},
		Indexer: IndexerConfig{
			Workers:        8,
			ChannelBufSize: 100,
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			ConsumerName:   "indexer",
		},
		Rebuild: RebuildConfig{
			PageSize: 500,
			Keep:     0,
		},
		Admin: AdminConfig{},
	}
}

// Load builds the configuration from defaults, overlaid with the YAML files
// and finally the environment. Missing files are skipped.
// Order: defaults -> config.yml -> config.local.yml -> env overrides.
func Load(dir string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{dir + "/config.yml", dir + "/config.local.yml"} {
		if err := loadFile(name, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments override connection
// endpoints and secrets without editing config files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FORUMSEARCH_MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("FORUMSEARCH_NATS_URL"); v != "" {
		c.Broker.URL = v
	}
	if v := os.Getenv("FORUMSEARCH_ELASTIC_URL"); v != "" {
		c.Elastic.URL = v
	}
	if v := os.Getenv("FORUMSEARCH_ADMIN_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := os.Getenv("FORUMSEARCH_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	if c.Index.BaseName == "" {
		return fmt.Errorf("index.base_name must not be empty")
	}
	switch c.Broker.Kind {
	case "nats", "memory":
	default:
		return fmt.Errorf("broker.kind must be \"nats\" or \"memory\", got %q", c.Broker.Kind)
	}
	if c.Indexer.Workers <= 0 {
		return fmt.Errorf("indexer.workers must be positive")
	}
	if c.Rebuild.PageSize <= 0 {
		return fmt.Errorf("rebuild.page_size must be positive")
	}
	if c.Rebuild.Keep < 0 {
		return fmt.Errorf("rebuild.keep must not be negative")
	}
	return nil
}
