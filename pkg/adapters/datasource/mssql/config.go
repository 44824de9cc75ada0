package mssql

import (
	"fmt"
	"net/url"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if host, ok := settings["host"].(string); ok {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := settings["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := settings["port"].(int); ok {
		cfg.Port = port
	}

	if database, ok := settings["database"].(string); ok {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if username, ok := settings["user"].(string); ok {
		cfg.Username = username
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := settings["password"].(string); ok {
		cfg.Password = password
	}

	if encrypt, ok := settings["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	}
	if trust, ok := settings["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	return cfg, nil
}

// connectionString builds a go-mssqldb connection URL.
func (c *Config) connectionString() string {
	query := url.Values{}
	query.Set("database", c.Database)
	query.Set("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	if c.Encrypt {
		query.Set("encrypt", "true")
	} else {
		query.Set("encrypt", "disable")
	}
	if c.TrustServerCertificate {
		query.Set("trustservercertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
