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
	"mime"
	"net/http"
	"net/url"
)

const (
	CarrierForm   = "form"
	CarrierHeader = "header"

	// DefaultMaxMemory matches the limit net/http uses for FormValue.
	DefaultMaxMemory = 32 << 20
)

// Unmask wraps a http handler and replaces masked tokens in the configured
// form field and header with the original token before calling next. It's
// suitable for use as a middleware function in common Go web frameworks.
func (m *Masker) Unmask(next http.Handler) http.Handler {
	return m.HandleUnmask(nil, next)
}

// HandleUnmask wraps the given http handler and exempter. Requests the
// exempter matches are passed to next untouched. Values without the
// delimiter were never masked and are left alone. A value that has the
// delimiter but does not decode is answered by the Rejecter and next is not
// called.
func (m *Masker) HandleUnmask(e Exempter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e != nil && e.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		if err := m.unmaskForm(r); err != nil {
			m.reject(w, r, CarrierForm, err)
			return
		}
		if err := m.unmaskHeader(r); err != nil {
			m.reject(w, r, CarrierHeader, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Masker) unmaskForm(r *http.Request) error {
	multipart, ok := formBody(r)
	if !ok {
		return nil
	}

	if r.PostForm == nil {
		var err error
		if multipart {
			err = r.ParseMultipartForm(DefaultMaxMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			// r.PostForm keeps the values read before the error and the
			// handler's own ParseForm returns nil, so a masked value here
			// would reach it undecoded.
			for _, v := range r.PostForm[m.cfg.FieldName] {
				if IsMasked(v) {
					return tampered("parse", err)
				}
			}
			m.opts.logger.Debug("unable to parse form", "path", r.URL.Path, "error", err)
			return nil
		}
	}

	values := append([]string(nil), r.PostForm[m.cfg.FieldName]...)
	for i, masked := range values {
		if !IsMasked(masked) {
			continue
		}
		token, err := m.Decode(masked)
		if err != nil {
			return err
		}

		r.PostForm[m.cfg.FieldName][i] = token
		replaceValue(r.Form, m.cfg.FieldName, masked, token)
		if r.MultipartForm != nil {
			replaceValue(url.Values(r.MultipartForm.Value), m.cfg.FieldName, masked, token)
		}
		m.opts.metrics.tokenUnmasked(CarrierForm)
	}
	return nil
}

// unmaskHeader decodes every masked value of the header. One bad value
// rejects the request.
func (m *Masker) unmaskHeader(r *http.Request) error {
	values := r.Header.Values(m.cfg.HeaderName)
	decoded := make([]string, len(values))
	n := 0
	for i, v := range values {
		decoded[i] = v
		if !IsMasked(v) {
			continue
		}
		token, err := m.Decode(v)
		if err != nil {
			return err
		}
		decoded[i] = token
		n++
	}
	if n == 0 {
		return nil
	}

	r.Header[http.CanonicalHeaderKey(m.cfg.HeaderName)] = decoded
	for ; n > 0; n-- {
		m.opts.metrics.tokenUnmasked(CarrierHeader)
	}
	return nil
}

func (m *Masker) reject(w http.ResponseWriter, r *http.Request, carrier string, err error) {
	stage := ""
	var te *TamperedInputError
	if errors.As(err, &te) {
		te.Carrier = carrier
		stage = te.Stage()
	}
	m.opts.metrics.tamperDetected(carrier)

	if m.opts.warnings.Allow() {
		m.opts.logger.Warn("rejecting request with tampered token",
			"carrier", carrier,
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"stage", stage,
			"error", errors.Unwrap(err))
	}
	m.opts.rejecter.Reject(w, r, err)
}

// formBody reports whether net/http will parse a form out of the body of r,
// and whether that form is multipart.
func formBody(r *http.Request) (multipart bool, ok bool) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false, false
	}
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false, false
	}
	switch ct {
	case "application/x-www-form-urlencoded":
		return false, true
	case "multipart/form-data":
		return true, true
	}
	return false, false
}

// replaceValue swaps every occurrence of old under key. Each masked value of
// a carrier is decoded on its own, and any one that fails rejects the request.
func replaceValue(vals url.Values, key, old, new string) {
	for i, v := range vals[key] {
		if v == old {
			vals[key][i] = new
		}
	}
}
