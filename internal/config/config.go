// Copyright 2020 Mike Helmick
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the configuration of the debreach demo server and
// loads it from defaults, a YAML file, the environment and flags.
package config

import (
	"fmt"
	"time"

	debreach "github.com/mikehelmick/go-debreach"
	"github.com/mikehelmick/go-debreach/internal/compress"
	"github.com/mikehelmick/go-debreach/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Server      ServerSection   `koanf:"server"`
	CSRF        CSRFSection     `koanf:"csrf"`
	Masking     debreach.Config `koanf:"masking"`
	Compression compress.Config `koanf:"compression"`
	Log         logging.Config  `koanf:"log"`
}

// ServerSection configures the HTTP listener.
type ServerSection struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// AccessLog enables the combined access log on stdout.
	AccessLog bool `koanf:"access_log"`
}

// CSRFSection configures the token cookie issued by the demo.
type CSRFSection struct {
	CookieName string `koanf:"cookie_name"`
	// TokenLength is the length of the unmasked token in characters.
	TokenLength  int  `koanf:"token_length"`
	CookieSecure bool `koanf:"cookie_secure"`
}

const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultCookieName      = "csrftoken"
	DefaultTokenLength     = 32
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerSection{
			Addr:            DefaultAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			AccessLog:       true,
		},
		CSRF: CSRFSection{
			CookieName:  DefaultCookieName,
			TokenLength: DefaultTokenLength,
		},
		Masking:     debreach.DefaultConfig(),
		Compression: compress.DefaultConfig(),
		Log:         logging.DefaultConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.CSRF.CookieName == "" {
		return fmt.Errorf("csrf.cookie_name is required")
	}
	if c.CSRF.TokenLength < 16 {
		return fmt.Errorf("csrf.token_length must be at least 16, got: %d", c.CSRF.TokenLength)
	}
	if c.Masking.NativeProtection {
		return fmt.Errorf("masking: %w", debreach.ErrNativeProtection)
	}
	if err := c.Masking.Validate(); err != nil {
		return fmt.Errorf("masking: %w", err)
	}
	if err := c.Compression.Validate(); err != nil {
		return fmt.Errorf("compression: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
