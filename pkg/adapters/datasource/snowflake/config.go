package snowflake

import (
	"fmt"

	"github.com/snowflakedb/gosnowflake"
)

// Config contains Snowflake-specific connection options.
type Config struct {
	Account   string // e.g. "xy12345.eu-central-1"
	User      string
	Password  string
	Database  string
	Schema    string // optional; session default when empty
	Warehouse string // optional
	Role      string // optional
}

// FromMap creates a Config from a generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	cfg := &Config{}

	if account, ok := settings["account"].(string); ok {
		cfg.Account = account
	} else {
		return nil, fmt.Errorf("account is required")
	}

	if user, ok := settings["user"].(string); ok {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := settings["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := settings["database"].(string); ok {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if schema, ok := settings["schema"].(string); ok {
		cfg.Schema = schema
	}
	if warehouse, ok := settings["warehouse"].(string); ok {
		cfg.Warehouse = warehouse
	}
	if role, ok := settings["role"].(string); ok {
		cfg.Role = role
	}

	return cfg, nil
}

// dsn builds a gosnowflake DSN from the config.
func (c *Config) dsn() (string, error) {
	sfCfg := &gosnowflake.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
	}
	dsn, err := gosnowflake.DSN(sfCfg)
	if err != nil {
		return "", fmt.Errorf("build snowflake DSN: %w", err)
	}
	return dsn, nil
}
