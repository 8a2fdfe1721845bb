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

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debreach", Config{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", "carrier", "form")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["@message"])
	assert.Equal(t, "debreach", entry["@module"])
	assert.Equal(t, "form", entry["carrier"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("demo", Config{Level: "debug", Format: "text"}, &buf)
	require.NoError(t, err)

	l.Debug("hello", "k", "v")
	out := buf.String()
	assert.Contains(t, out, "[DEBUG]")
	assert.Contains(t, out, "demo: hello")
	assert.Contains(t, out, "k=v")
}

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("http", DefaultConfig(), &buf)
	require.NoError(t, err)

	StandardLogger(l).Printf("[ERROR] handshake failed")
	assert.Contains(t, buf.String(), "handshake failed")
	assert.Contains(t, buf.String(), `"@level":"error"`)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())

	_, err := New("x", Config{Level: "loud"}, nil)
	assert.Error(t, err)
}
