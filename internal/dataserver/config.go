package dataserver

import "time"

// Config holds the local data server settings.
type Config struct {
	// Enabled turns the server on. The CLI only starts it for the
	// `serve` command.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Host to bind, defaults to loopback only.
	Host string `json:"host" mapstructure:"host"`

	// Port to bind. 0 picks a free port.
	Port int `json:"port" mapstructure:"port"`

	// RequestTimeout bounds a single request, zero disables it.
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Host:           "127.0.0.1",
		Port:           8377,
		RequestTimeout: 30 * time.Second,
	}
}
