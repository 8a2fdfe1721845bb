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
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

// Option configures a Masker or an Inflator.
type Option func(*options)

type options struct {
	logger   hclog.Logger
	metrics  *Metrics
	rejecter Rejecter
	source   TokenSource
	warnings *rate.Limiter
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:   hclog.NewNullLogger(),
		rejecter: &PlainRejecter{},
		warnings: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger. Tokens and pads are never logged.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRejecter sets how a tampered request is answered. The default is a
// PlainRejecter.
func WithRejecter(r Rejecter) Option {
	return func(o *options) {
		if r != nil {
			o.rejecter = r
		}
	}
}

// WithTokenSource sets where MaskedToken looks up the current token.
func WithTokenSource(s TokenSource) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithTamperLogLimit caps tamper warnings to perSecond with the given burst.
// Rejections are never throttled, only the log lines.
func WithTamperLogLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.warnings = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}
