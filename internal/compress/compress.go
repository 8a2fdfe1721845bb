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

// Package compress provides response compression middleware. Brotli is used
// when the client accepts it, gzip otherwise.
//
// Compression is what BREACH measures. Install the debreach Inflator inside
// this middleware so the random comment is compressed along with the page.
package compress

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
)

// Config configures compression.
type Config struct {
	Enabled bool `koanf:"enabled"`
	// GzipLevel is a compress/gzip level, -2 (huffman only) to 9.
	GzipLevel int `koanf:"gzip_level"`
	// BrotliQuality is 0 to 11.
	BrotliQuality int `koanf:"brotli_quality"`
	// MinSize is the smallest gzip response that gets compressed.
	MinSize int `koanf:"min_size"`
	// Jitter adds up to this many bytes of gzip padding per response. Zero
	// disables it.
	Jitter int `koanf:"jitter"`
}

// DefaultConfig enables compression at moderate levels.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		GzipLevel:     gzip.DefaultCompression,
		BrotliQuality: brotli.DefaultCompression,
		MinSize:       gzhttp.DefaultMinSize,
	}
}

// Validate checks the levels.
func (c Config) Validate() error {
	if c.GzipLevel < gzip.HuffmanOnly || c.GzipLevel > gzip.BestCompression {
		return fmt.Errorf("gzip_level must be between %d and %d, got: %d", gzip.HuffmanOnly, gzip.BestCompression, c.GzipLevel)
	}
	if c.BrotliQuality < brotli.BestSpeed || c.BrotliQuality > brotli.BestCompression {
		return fmt.Errorf("brotli_quality must be between %d and %d, got: %d", brotli.BestSpeed, brotli.BestCompression, c.BrotliQuality)
	}
	if c.MinSize < 0 || c.Jitter < 0 {
		return fmt.Errorf("min_size and jitter must not be negative")
	}
	return nil
}

// New returns the compression middleware. When cfg.Enabled is false the
// middleware returns next unchanged.
func New(cfg Config) (func(http.Handler) http.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	var gz func(http.Handler) http.HandlerFunc
	var err error
	if cfg.Jitter > 0 {
		gz, err = gzhttp.NewWrapper(
			gzhttp.CompressionLevel(cfg.GzipLevel),
			gzhttp.MinSize(cfg.MinSize),
			gzhttp.RandomJitter(cfg.Jitter, 0, false))
	} else {
		gz, err = gzhttp.NewWrapper(
			gzhttp.CompressionLevel(cfg.GzipLevel),
			gzhttp.MinSize(cfg.MinSize))
	}
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		gzNext := gz(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AcceptsEncoding(r, "br") {
				gzNext.ServeHTTP(w, r)
				return
			}
			bw := &brotliWriter{ResponseWriter: w, quality: cfg.BrotliQuality}
			defer bw.Close()
			next.ServeHTTP(bw, r)
		})
	}, nil
}

// AcceptsEncoding reports whether the Accept-Encoding header of r lists enc
// with a non-zero quality.
func AcceptsEncoding(r *http.Request, enc string) bool {
	for _, v := range r.Header.Values("Accept-Encoding") {
		for _, part := range strings.Split(v, ",") {
			name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
			if !strings.EqualFold(strings.TrimSpace(name), enc) {
				continue
			}
			q := strings.TrimSpace(params)
			if !strings.HasPrefix(q, "q=") {
				return true
			}
			f, err := strconv.ParseFloat(strings.TrimPrefix(q, "q="), 64)
			return err == nil && f > 0
		}
	}
	return false
}

// brotliWriter compresses everything written to it. Responses that carry no
// body or are already encoded are passed through.
type brotliWriter struct {
	http.ResponseWriter
	quality     int
	bw          *brotli.Writer
	wroteHeader bool
}

func (w *brotliWriter) WriteHeader(code int) {
	if code < 200 {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	h := w.Header()
	if h.Get("Content-Encoding") == "" && code != http.StatusNoContent && code != http.StatusNotModified {
		h.Del("Content-Length")
		h.Set("Content-Encoding", "br")
		h.Add("Vary", "Accept-Encoding")
		w.bw = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *brotliWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		if _, ok := w.Header()["Content-Type"]; !ok {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.bw == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.bw.Write(b)
}

func (w *brotliWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.bw != nil {
		w.bw.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Close finishes the brotli stream.
func (w *brotliWriter) Close() error {
	if w.bw == nil {
		return nil
	}
	return w.bw.Close()
}

func (w *brotliWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
