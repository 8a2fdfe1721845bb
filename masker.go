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

package debreach

import (
	"encoding/base64"
	"errors"
	"html/template"
	"net/http"
	"strings"
)

const (
	// Delimiter separates the key from the value in a masked token.
	Delimiter = "$"

	// NotProvided is rendered in place of a masked token when no token is
	// available, so a missing token source is visible in the page.
	NotProvided = "NOTPROVIDED"
)

// Masker masks tokens on the way out and unmasks them on the way in.
//
// Every Encode draws a new pad, so rendering the same token twice never
// produces the same bytes. A Masker is safe for concurrent use.
type Masker struct {
	cfg  Config
	opts *options
}

// NewMasker validates cfg and creates a Masker. Zero fields of cfg take their
// values from DefaultConfig.
func NewMasker(cfg Config, opts ...Option) (*Masker, error) {
	if cfg.NativeProtection {
		return nil, ErrNativeProtection
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Masker{cfg: cfg, opts: newOptions(opts)}, nil
}

// Config returns the effective configuration.
func (m *Masker) Config() Config {
	return m.cfg
}

// Encode masks token and returns the "key$value" wire string.
func (m *Masker) Encode(token string) (string, error) {
	var key, value string
	var err error
	switch m.cfg.Mode {
	case ModeBlock:
		key, value, err = encodeBlock([]byte(token), m.cfg.BlockKeySize)
	default:
		key, value, err = encodeStream([]byte(token))
	}
	if err != nil {
		return "", err
	}
	if m.cfg.EncodeKey {
		key = base64.RawURLEncoding.EncodeToString([]byte(key))
	}
	m.opts.metrics.tokenMasked()
	return key + Delimiter + value, nil
}

// Decode reverses Encode. Any failure is reported as a *TamperedInputError.
// Decode must only be called on values that contain Delimiter; callers that
// accept unmasked values check IsMasked first.
func (m *Masker) Decode(wire string) (string, error) {
	keyText, value, ok := strings.Cut(wire, Delimiter)
	if !ok || strings.Contains(value, Delimiter) {
		return "", tampered("split", errors.New("want exactly one delimiter"))
	}

	key := []byte(keyText)
	if m.cfg.EncodeKey {
		var err error
		if key, err = base64.RawURLEncoding.DecodeString(keyText); err != nil {
			return "", tampered("key", err)
		}
	}

	switch m.cfg.Mode {
	case ModeBlock:
		return decodeBlock(key, value)
	default:
		return decodeStream(key, value)
	}
}

// IsMasked reports whether v looks like the output of Encode.
func IsMasked(v string) bool {
	return strings.Contains(v, Delimiter)
}

// MaskedToken returns a freshly masked copy of the request's token, or
// NotProvided when the token source has nothing.
func (m *Masker) MaskedToken(r *http.Request) string {
	if m.opts.source == nil {
		return NotProvided
	}
	token, ok := m.opts.source.Token(r)
	if !ok {
		return NotProvided
	}
	masked, err := m.Encode(token)
	if err != nil {
		m.opts.logger.Error("unable to mask token", "error", err)
		return NotProvided
	}
	return masked
}

// TemplateFuncs returns a csrf_token template function bound to r. The token
// is masked when the template calls it, once per call.
func (m *Masker) TemplateFuncs(r *http.Request) template.FuncMap {
	return template.FuncMap{
		"csrf_token": func() string {
			return m.MaskedToken(r)
		},
	}
}

func encodeStream(token []byte) (string, string, error) {
	key, err := RandomString(len(token))
	if err != nil {
		return "", "", err
	}
	return key, base64.RawURLEncoding.EncodeToString(xor(token, []byte(key))), nil
}

func decodeStream(key []byte, value string) (string, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", tampered("value", err)
	}
	// Encode always draws a pad as long as the token.
	if len(key) != len(ciphertext) {
		return "", tampered("key", errors.New("pad length does not match value"))
	}
	return string(xor(ciphertext, key)), nil
}
