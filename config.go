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
	"errors"
	"fmt"
)

// Mode selects the masking algorithm.
type Mode string

const (
	// ModeStream XORs the token with a pad of the same length. This is the
	// default and the recommended mode.
	ModeStream Mode = "stream"

	// ModeBlock encrypts the token with AES in ECB mode, keyed by the pad,
	// after right-padding it with BlockFiller. It exists for compatibility
	// with older deployments only.
	ModeBlock Mode = "block"
)

const (
	// DefaultFieldName is the form field read by Unmask.
	DefaultFieldName = "csrfmiddlewaretoken"
	// DefaultHeaderName is the request header read by Unmask.
	DefaultHeaderName = "X-CSRFToken"
	// DefaultCommentMinLength is the shortest random comment payload.
	DefaultCommentMinLength = 12
	// DefaultCommentMaxLength is the longest random comment payload.
	DefaultCommentMaxLength = 24
	// DefaultBlockKeySize selects AES-128 for block mode.
	DefaultBlockKeySize = 16
)

// ErrNativeProtection is returned when the host application reports that it
// already masks its tokens. Masking twice would break the host's own decoding.
var ErrNativeProtection = errors.New("host already provides token masking, disable native_protection or this middleware")

// Config holds the settings shared by the Masker and the Inflator.
type Config struct {
	// Mode is the masking algorithm, stream or block.
	Mode Mode `koanf:"mode"`

	// EncodeKey base64 encodes the key segment of the wire string. When false
	// the key is written as the raw alphanumeric pad.
	EncodeKey bool `koanf:"encode_key"`

	// BlockKeySize is the AES key size in bytes for block mode.
	BlockKeySize int `koanf:"block_key_size"`

	// FieldName is the form field carrying a masked token.
	FieldName string `koanf:"field_name"`
	// HeaderName is the request header carrying a masked token.
	HeaderName string `koanf:"header_name"`

	// CommentMinLength and CommentMaxLength bound the length of the random
	// comment payload, inclusive.
	CommentMinLength int `koanf:"comment_min_length"`
	CommentMaxLength int `koanf:"comment_max_length"`

	// ExemptByDefault disables inflation for every response unless the route
	// is wrapped with Inflator.Route.
	ExemptByDefault bool `koanf:"exempt_by_default"`

	// NativeProtection is set by hosts that already mask tokens themselves.
	// Constructors refuse to build a Masker when it is true.
	NativeProtection bool `koanf:"native_protection"`
}

// DefaultConfig returns a stream mode configuration with the default field,
// header and comment range.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeStream,
		BlockKeySize:     DefaultBlockKeySize,
		FieldName:        DefaultFieldName,
		HeaderName:       DefaultHeaderName,
		CommentMinLength: DefaultCommentMinLength,
		CommentMaxLength: DefaultCommentMaxLength,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.BlockKeySize == 0 {
		c.BlockKeySize = d.BlockKeySize
	}
	if c.FieldName == "" {
		c.FieldName = d.FieldName
	}
	if c.HeaderName == "" {
		c.HeaderName = d.HeaderName
	}
	if c.CommentMinLength == 0 && c.CommentMaxLength == 0 {
		c.CommentMinLength = d.CommentMinLength
		c.CommentMaxLength = d.CommentMaxLength
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeStream, ModeBlock:
	default:
		return fmt.Errorf("unknown mode %q, want %q or %q", c.Mode, ModeStream, ModeBlock)
	}
	switch c.BlockKeySize {
	case 16, 24, 32:
	default:
		return fmt.Errorf("block_key_size must be 16, 24 or 32, got: %v", c.BlockKeySize)
	}
	if c.CommentMinLength < 1 || c.CommentMaxLength < c.CommentMinLength {
		return fmt.Errorf("comment length range must satisfy 1 <= min <= max, got: %v-%v",
			c.CommentMinLength, c.CommentMaxLength)
	}
	return nil
}
