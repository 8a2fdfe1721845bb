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
	"encoding/json"
	"net/http"
)

// JSONRejecter answers with a 400 and {"error": "bad request"}.
type JSONRejecter struct {
}

func (jr *JSONRejecter) Reject(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
}

// ProduceJSONFn wraps a masked token into the value that TokenHandler
// serializes.
type ProduceJSONFn func(masked string) interface{}

// TokenResponse is the default body written by TokenHandler.
type TokenResponse struct {
	Token string `json:"token"`
}

// TokenHandler returns an http handler that writes a freshly masked token as
// JSON, for clients that put the token in a header instead of a form.
func (m *Masker) TokenHandler() http.Handler {
	return m.JSONTokenHandler(func(masked string) interface{} {
		return &TokenResponse{Token: masked}
	})
}

// JSONTokenHandler is TokenHandler with a custom response body.
func (m *Masker) JSONTokenHandler(fn ProduceJSONFn) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, fn(m.MaskedToken(r)))
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write(data)
}
