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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	debreach "github.com/mikehelmick/go-debreach"
)

// testPrefix keeps the tests clear of a real DEBREACH_ environment.
const testPrefix = "DEBREACHTEST_"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader(WithEnvPrefix(testPrefix)).Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: "0.0.0.0:9090"
  read_timeout: 3s
masking:
  mode: block
  encode_key: true
  block_key_size: 32
  comment_min_length: 4
  comment_max_length: 8
compression:
  jitter: 16
log:
  format: text
`)

	cfg, err := NewLoader(WithEnvPrefix(testPrefix), WithConfigFile(path)).Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, debreach.ModeBlock, cfg.Masking.Mode)
	assert.True(t, cfg.Masking.EncodeKey)
	assert.Equal(t, 32, cfg.Masking.BlockKeySize)
	assert.Equal(t, 4, cfg.Masking.CommentMinLength)
	assert.Equal(t, 8, cfg.Masking.CommentMaxLength)
	assert.Equal(t, debreach.DefaultFieldName, cfg.Masking.FieldName)
	assert.Equal(t, 16, cfg.Compression.Jitter)
	assert.True(t, cfg.Compression.Enabled)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPriority(t *testing.T) {
	path := writeFile(t, `
server:
  addr: "file:1"
masking:
  header_name: X-From-File
log:
  level: debug
`)
	t.Setenv(testPrefix+"SERVER__ADDR", "env:2")
	t.Setenv(testPrefix+"MASKING__HEADER_NAME", "X-From-Env")
	t.Setenv(testPrefix+"MASKING__EXEMPT_BY_DEFAULT", "true")

	cfg, err := NewLoader(WithEnvPrefix(testPrefix), WithConfigFile(path)).Load(map[string]any{
		"server.addr": "flag:3",
	})
	require.NoError(t, err)

	assert.Equal(t, "flag:3", cfg.Server.Addr)
	assert.Equal(t, "X-From-Env", cfg.Masking.HeaderName)
	assert.True(t, cfg.Masking.ExemptByDefault)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := NewLoader(WithEnvPrefix(testPrefix), WithConfigFile("/nonexistent/config.yaml")).Load(nil)
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		target  error
	}{
		{"native protection", "masking:\n  native_protection: true\n", debreach.ErrNativeProtection},
		{"bad mode", "masking:\n  mode: rot13\n", nil},
		{"bad log level", "log:\n  level: loud\n", nil},
		{"short token", "csrf:\n  token_length: 4\n", nil},
		{"bad gzip level", "compression:\n  gzip_level: 42\n", nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader(WithEnvPrefix(testPrefix), WithConfigFile(writeFile(t, tc.content))).Load(nil)
			require.Error(t, err)
			if tc.target != nil {
				assert.True(t, errors.Is(err, tc.target), "error %v does not wrap %v", err, tc.target)
			}
		})
	}
}

func TestMapProvider(t *testing.T) {
	m, err := mapProvider{"a.b.c": 1, "a.d": "x", "e": true}.Read()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, m)

	_, err = mapProvider{}.ReadBytes()
	assert.Error(t, err)
}
