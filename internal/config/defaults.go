package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		DSN:                 "clickhouse://127.0.0.1:9000",
		Table:               "outcomes_raw_local",
		DialTimeoutSeconds:  5,
		QueryTimeoutSeconds: 0,
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
