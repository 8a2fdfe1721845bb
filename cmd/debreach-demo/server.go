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

package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	debreach "github.com/mikehelmick/go-debreach"
	"github.com/mikehelmick/go-debreach/internal/compress"
	"github.com/mikehelmick/go-debreach/internal/config"
	"github.com/mikehelmick/go-debreach/internal/logging"
)

const requestIDHeader = "X-Request-ID"

const pageTemplate = `<!doctype html>
<html>
<head><title>debreach demo</title></head>
<body>
{{- if .Query}}
<p>Results for: {{.Query}}</p>
{{- end}}
{{- if .Message}}
<p>Thanks, we received: {{.Message}}</p>
{{- end}}
<form method="post" action="/form">
<input type="hidden" name="{{.FieldName}}" value="{{csrf_token}}">
<input type="text" name="message">
<button type="submit">Send</button>
</form>
</body>
</html>
`

type pageData struct {
	FieldName string
	Query     string
	Message   string
}

type requestIDKey struct{}

type server struct {
	cfg       *config.Config
	logger    hclog.Logger
	masker    *debreach.Masker
	inflator  *debreach.Inflator
	compress  func(http.Handler) http.Handler
	registry  *prometheus.Registry
	page      *template.Template
	accessLog io.Writer
}

func newServer(cfg *config.Config, logger hclog.Logger) (*server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := debreach.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	opts := []debreach.Option{
		debreach.WithLogger(logger.Named("debreach")),
		debreach.WithMetrics(metrics),
		debreach.WithTokenSource(debreach.CookieTokenSource(cfg.CSRF.CookieName)),
	}
	masker, err := debreach.NewMasker(cfg.Masking, opts...)
	if err != nil {
		return nil, err
	}
	inflator, err := debreach.NewInflator(cfg.Masking, opts...)
	if err != nil {
		return nil, err
	}
	mw, err := compress.New(cfg.Compression)
	if err != nil {
		return nil, err
	}

	// csrf_token is rebound per request on a clone.
	page, err := template.New("page").
		Funcs(template.FuncMap{"csrf_token": func() string { return debreach.NotProvided }}).
		Parse(pageTemplate)
	if err != nil {
		return nil, err
	}

	return &server{
		cfg:       cfg,
		logger:    logger,
		masker:    masker,
		inflator:  inflator,
		compress:  mw,
		registry:  reg,
		page:      page,
		accessLog: os.Stdout,
	}, nil
}

// handler assembles the middleware chain. From the outside in: panic
// recovery, access log, request id, compression, comment inflation, token
// issuance, unmasking, routing.
func (s *server) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/form", s.handleSubmit).Methods(http.MethodPost)
	r.Handle("/token", s.masker.TokenHandler()).Methods(http.MethodGet)
	r.HandleFunc("/api/echo", s.handleEcho).Methods(http.MethodPost)
	r.Handle("/raw", debreach.ExemptHandler(http.HandlerFunc(s.handleRaw))).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		DisableCompression: true,
	})).Methods(http.MethodGet)

	var h http.Handler = r
	h = s.masker.Unmask(h)
	h = s.issueToken(h)
	h = s.inflator.Handler(h)
	h = s.compress(h)
	h = requestID(h)
	if s.cfg.Server.AccessLog {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(logging.StandardLogger(s.logger.Named("recovery"))),
		handlers.PrintRecoveryStack(true),
	)(h)
}

// issueToken makes sure every request carries a CSRF cookie. A new token is
// set on the response and added to the request so handlers downstream can
// render it right away.
func (s *server) issueToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(s.cfg.CSRF.CookieName); err == nil && c.Value != "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := debreach.RandomString(s.cfg.CSRF.TokenLength)
		if err != nil {
			s.logger.Error("unable to generate csrf token", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		c := &http.Cookie{
			Name:     s.cfg.CSRF.CookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cfg.CSRF.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		}
		http.SetCookie(w, c)
		r.AddCookie(c)
		next.ServeHTTP(w, r)
	})
}

// validToken compares the unmasked token the client sent with the cookie.
func (s *server) validToken(r *http.Request, got string) bool {
	c, err := r.Cookie(s.cfg.CSRF.CookieName)
	if err != nil || c.Value == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(got)) == 1
}

func (s *server) render(w http.ResponseWriter, r *http.Request, data pageData) {
	t, err := s.page.Clone()
	if err != nil {
		s.logger.Error("unable to clone template", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	t.Funcs(s.masker.TemplateFuncs(r))

	data.FieldName = s.masker.Config().FieldName
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		s.logger.Error("unable to render page", "request_id", requestIDFrom(r.Context()), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pageData{Query: r.URL.Query().Get("q")})
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.validToken(r, r.PostFormValue(s.masker.Config().FieldName)) {
		s.logger.Warn("csrf token mismatch", "request_id", requestIDFrom(r.Context()), "path", r.URL.Path)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	s.render(w, r, pageData{Message: r.PostFormValue("message")})
}

type echoResponse struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"request_id"`
}

func (s *server) handleEcho(w http.ResponseWriter, r *http.Request) {
	if !s.validToken(r, r.Header.Get(s.masker.Config().HeaderName)) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&echoResponse{OK: true, RequestID: requestIDFrom(r.Context())})
}

// handleRaw serves HTML that must reach the client byte for byte.
func (s *server) handleRaw(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, "<!doctype html><p>raw</p>")
}

// requestID tags each request with an id, reusing the client's when it is a
// valid UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	s, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     logging.StandardLogger(logger.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
