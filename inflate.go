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
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Inflator appends a random HTML comment to HTML responses so that their
// size changes from one request to the next.
//
// The response is buffered until the handler returns. Handlers that flush
// are treated as streams and left alone.
type Inflator struct {
	cfg  Config
	opts *options
}

// NewInflator validates cfg and creates an Inflator. Zero fields of cfg take
// their values from DefaultConfig.
func NewInflator(cfg Config, opts ...Option) (*Inflator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Inflator{cfg: cfg, opts: newOptions(opts)}, nil
}

// Inflate appends a comment to body if contentType is HTML, body is not
// empty, and the response is neither exempt nor already inflated. It returns
// the resulting body and whether a comment was appended.
func (i *Inflator) Inflate(body []byte, contentType string, alreadyApplied, exempt bool) ([]byte, bool) {
	if alreadyApplied || exempt || len(body) == 0 || !isHTML(contentType) {
		return body, false
	}

	n, err := randomInt(i.cfg.CommentMinLength, i.cfg.CommentMaxLength)
	if err != nil {
		i.opts.logger.Error("unable to pick comment length", "error", err)
		return body, false
	}
	payload, err := RandomString(n)
	if err != nil {
		i.opts.logger.Error("unable to generate comment", "error", err)
		return body, false
	}

	out := make([]byte, 0, len(body)+n+9)
	out = append(out, body...)
	out = append(out, "<!-- "...)
	out = append(out, payload...)
	out = append(out, " -->"...)
	i.opts.metrics.commentAppended(n)
	return out, true
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html")
}

// Handler inflates every eligible response of next.
func (i *Inflator) Handler(next http.Handler) http.Handler {
	return i.HandleInflate(nil, next)
}

// HandleInflate is Handler with an Exempter; responses to matching requests
// are not inflated.
func (i *Inflator) HandleInflate(e Exempter, next http.Handler) http.Handler {
	return i.handle(e, false, next)
}

// Route wraps a single handler. Its responses are inflated even when
// ExemptByDefault is set, unless the handler calls Exempt. Combining Route
// with Handler inflates a response once.
func (i *Inflator) Route(next http.Handler) http.Handler {
	return i.handle(nil, true, next)
}

func (i *Inflator) handle(e Exempter, optIn bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		r, st := withState(r, i.cfg.ExemptByDefault)
		if optIn {
			st.defaultExempt = false
		}
		if e != nil && e.IsExempt(r) {
			st.forcedExempt = true
		}

		bw := &bufferedWriter{w: w, code: http.StatusOK}
		next.ServeHTTP(bw, r)
		if bw.streaming {
			return
		}

		h := w.Header()
		body := bw.buf.Bytes()
		if _, ok := h["Content-Type"]; !ok && len(body) > 0 {
			h.Set("Content-Type", http.DetectContentType(body))
		}

		// An encoded body can't be appended to.
		exempt := st.defaultExempt || st.forcedExempt
		if ce := h.Get("Content-Encoding"); ce != "" && ce != "identity" {
			exempt = true
		}

		out, applied := i.Inflate(body, h.Get("Content-Type"), st.applied, exempt)
		if applied {
			st.applied = true
			if h.Get("Content-Length") != "" {
				h.Set("Content-Length", strconv.Itoa(len(out)))
			}
		}

		w.WriteHeader(bw.code)
		if len(out) > 0 {
			if _, err := w.Write(out); err != nil {
				i.opts.logger.Debug("error writing response", "path", r.URL.Path, "error", err)
			}
		}
	})
}

// responseState is shared by every Inflator wrapped around one response.
// Route clears defaultExempt only; nothing clears forcedExempt.
type responseState struct {
	defaultExempt bool
	forcedExempt  bool
	applied       bool
}

type stateKey struct{}

func stateFrom(ctx context.Context) *responseState {
	st, _ := ctx.Value(stateKey{}).(*responseState)
	return st
}

func withState(r *http.Request, exempt bool) (*http.Request, *responseState) {
	if st := stateFrom(r.Context()); st != nil {
		return r, st
	}
	st := &responseState{defaultExempt: exempt}
	return r.WithContext(context.WithValue(r.Context(), stateKey{}, st)), st
}

// Exempt marks the response to r so that no comment is appended. It must be
// called with the request the handler received and has no effect on requests
// that did not pass through an Inflator. Use ExemptHandler outside of one.
func Exempt(r *http.Request) {
	if st := stateFrom(r.Context()); st != nil {
		st.forcedExempt = true
	}
}

// ExemptHandler wraps a handler whose responses must never be inflated,
// whether it sits inside or outside the Inflator middleware.
func ExemptHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, st := withState(r, false)
		st.forcedExempt = true
		next.ServeHTTP(w, r)
	})
}

// bufferedWriter holds the response of the delegate handler so it can be
// inflated once the handler returns.
type bufferedWriter struct {
	w           http.ResponseWriter
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	streaming   bool
}

func (bw *bufferedWriter) Header() http.Header {
	return bw.w.Header()
}

func (bw *bufferedWriter) WriteHeader(statusCode int) {
	if bw.streaming || (statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols) {
		bw.w.WriteHeader(statusCode)
		return
	}
	if bw.wroteHeader {
		return
	}
	bw.wroteHeader = true
	bw.code = statusCode
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if bw.streaming {
		return bw.w.Write(b)
	}
	if !bw.wroteHeader {
		bw.WriteHeader(http.StatusOK)
	}
	return bw.buf.Write(b)
}

// Flush turns the response into a stream. Everything buffered so far is sent
// and later writes go straight through.
func (bw *bufferedWriter) Flush() {
	if !bw.streaming {
		bw.streaming = true
		bw.w.WriteHeader(bw.code)
		if bw.buf.Len() > 0 {
			bw.w.Write(bw.buf.Bytes())
			bw.buf.Reset()
		}
	}
	if f, ok := bw.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (bw *bufferedWriter) Unwrap() http.ResponseWriter {
	return bw.w
}
