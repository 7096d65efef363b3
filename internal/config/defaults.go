package config

import "time"

// DefaultConfig returns a Config populated with the defaults named in
// spec.md §6 and §4.J.
func DefaultConfig() *Config {
	return &Config{
		Listen:               "0.0.0.0:9003",
		LogLevel:             "INFO",
		MaxDepth:             8,
		StackMaxContextFetch: 4,
		MotionPrefixMax:      9999,
		ShutdownTimeout:      5 * time.Second,
	}
}
