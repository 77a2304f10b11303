package save

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TrueNine/jimmer/dialect"
	"github.com/TrueNine/jimmer/dialect/sql"
)

// Config is the file form of the client configuration.
//
//	dialect: postgres
//	dsn: postgres://localhost/shop?sslmode=disable
//	id_strategy: sequence
//	sequence_start: 1000
//	id_strategies:
//	  TreeNode: identity
//	batch_policy:
//	  - dialect: postgres
//	    strategy: identity
//	    batch: true
type Config struct {
	// Dialect is one of the predefined flavors.
	Dialect string `yaml:"dialect"`
	// Driver is the database/sql driver name. It defaults to the
	// driver registered for the dialect.
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
	// Batch disables batched execution when false.
	Batch *bool `yaml:"batch,omitempty"`
	// IDStrategy is the id strategy of every entity type.
	IDStrategy string `yaml:"id_strategy,omitempty"`
	// IDStrategies overrides the strategy per entity type.
	IDStrategies  map[string]string `yaml:"id_strategies,omitempty"`
	SequenceStart int64             `yaml:"sequence_start,omitempty"`
	BatchPolicy   []PolicyEntry     `yaml:"batch_policy,omitempty"`
	// SlowQuery is the duration above which statements are logged as slow.
	SlowQuery time.Duration `yaml:"slow_query,omitempty"`
}

// PolicyEntry is one entry of the batch policy table.
type PolicyEntry struct {
	Dialect  string `yaml:"dialect,omitempty"`
	Strategy string `yaml:"strategy"`
	Batch    bool   `yaml:"batch"`
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read save config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse save config: %w", err)
	}
	if _, err := cfg.Flavor(); err != nil {
		return nil, err
	}
	if _, err := cfg.Options(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Flavor returns the flavor of the configured dialect.
func (c *Config) Flavor() (sql.Flavor, error) {
	if c.Dialect == "" {
		return sql.Flavor{}, fmt.Errorf("save: config without dialect")
	}
	return sql.FlavorOf(c.Dialect)
}

// DriverName returns the database/sql driver to open.
func (c *Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	switch c.Dialect {
	case dialect.Postgres, dialect.MySQL, dialect.SQLite:
		return c.Dialect
	}
	return ""
}

// Options returns the client options described by the configuration.
func (c *Config) Options() ([]ClientOption, error) {
	var opts []ClientOption
	if c.Batch != nil {
		opts = append(opts, WithBatch(*c.Batch))
	}
	// Types configured with the sequence strategy share one sequence.
	var seq IDGenerator
	generator := func(name string) (IDGenerator, error) {
		s, err := ParseIDStrategy(name)
		if err != nil {
			return nil, err
		}
		if s == StrategySequence {
			if seq == nil {
				seq = NewSequenceGenerator(max(c.SequenceStart, 1))
			}
			return seq, nil
		}
		return generatorOf(s, 0)
	}
	if c.IDStrategy != "" {
		g, err := generator(c.IDStrategy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithIDGenerator("", g))
	}
	for typ, name := range c.IDStrategies {
		g, err := generator(name)
		if err != nil {
			return nil, fmt.Errorf("save: id strategy of %s: %w", typ, err)
		}
		opts = append(opts, WithIDGenerator(typ, g))
	}
	if len(c.BatchPolicy) > 0 {
		policy := DefaultBatchPolicy()
		for _, e := range c.BatchPolicy {
			s, err := ParseIDStrategy(e.Strategy)
			if err != nil {
				return nil, fmt.Errorf("save: batch policy: %w", err)
			}
			policy = policy.With(BatchKey{Dialect: e.Dialect, Strategy: s}, e.Batch)
		}
		opts = append(opts, WithBatchPolicy(policy))
	}
	return opts, nil
}
