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

// Package logging builds the hclog loggers used by the demo server.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `koanf:"level"`
	// Format is the output format (json, text).
	Format string `koanf:"format"`
}

// DefaultConfig returns info level JSON logging.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if hclog.LevelFromString(c.Level) == hclog.NoLevel {
		return fmt.Errorf("unknown level %q", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("unknown format %q, want json or text", c.Format)
	}
	return nil
}

// New creates a named logger writing to out, or stderr when out is nil.
func New(name string, cfg Config, out io.Writer) (hclog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(cfg.Level),
		JSONFormat: strings.EqualFold(cfg.Format, "json"),
		Output:     out,
	}), nil
}

// StandardLogger adapts l for APIs that want a *log.Logger, like
// http.Server.ErrorLog.
func StandardLogger(l hclog.Logger) *log.Logger {
	return l.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
}
