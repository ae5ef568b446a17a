package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			port:        8080,
			handSize:    7,
			minPlayers:  3,
			roomTimeout: 5 * time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"tls cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"tls key without cert", func(c *Config) { c.tlsKey = "key.pem" }, true},
		{"tls pair", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"port too low", func(c *Config) { c.port = 0 }, true},
		{"port too high", func(c *Config) { c.port = 70000 }, true},
		{"zero hand size", func(c *Config) { c.handSize = 0 }, true},
		{"two player minimum", func(c *Config) { c.minPlayers = 2 }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := base()
			test.mutate(cfg)

			err := cfg.validate()

			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 7, cfg.handSize)
	assert.Equal(t, 3, cfg.minPlayers)
	assert.Equal(t, 5*time.Minute, cfg.roomTimeout)
	assert.False(t, cfg.verbose)
}
