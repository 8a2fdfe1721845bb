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

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "debreach"

// Metrics holds the Prometheus collectors updated by the Masker and the
// Inflator. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tokensMasked     prometheus.Counter
	tokensUnmasked   *prometheus.CounterVec
	tampered         *prometheus.CounterVec
	commentsAppended prometheus.Counter
	commentLength    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tokensMasked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tokens_masked_total",
			Help:      "Tokens masked for output.",
		}),
		tokensUnmasked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tokens_unmasked_total",
			Help:      "Masked tokens recovered from requests, by carrier.",
		}, []string{"carrier"}),
		tampered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tampered_total",
			Help:      "Requests rejected because a masked token could not be decoded, by carrier.",
		}, []string{"carrier"}),
		commentsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "comments_appended_total",
			Help:      "Random comments appended to HTML responses.",
		}),
		commentLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "comment_length",
			Help:      "Length of the random payload of appended comments.",
			Buckets:   prometheus.LinearBuckets(8, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.tokensMasked, m.tokensUnmasked, m.tampered, m.commentsAppended, m.commentLength,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) tokenMasked() {
	if m == nil {
		return
	}
	m.tokensMasked.Inc()
}

func (m *Metrics) tokenUnmasked(carrier string) {
	if m == nil {
		return
	}
	m.tokensUnmasked.WithLabelValues(carrier).Inc()
}

func (m *Metrics) tamperDetected(carrier string) {
	if m == nil {
		return
	}
	m.tampered.WithLabelValues(carrier).Inc()
}

func (m *Metrics) commentAppended(n int) {
	if m == nil {
		return
	}
	m.commentsAppended.Inc()
	m.commentLength.Observe(float64(n))
}
