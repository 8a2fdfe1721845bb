// Copyright 2020 Mike Helmick
// Copyright 2020 Seth Vargo
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
	"net/http"
	"strings"
)

// Exempter decides which requests bypass unmasking.
type Exempter interface {
	IsExempt(r *http.Request) bool
}

var _ Exempter = (ExempterFunc)(nil)

type ExempterFunc func(r *http.Request) bool

func (e ExempterFunc) IsExempt(r *http.Request) bool {
	return e(r)
}

// PathPrefixExempter exempts requests whose path starts with any of the
// prefixes.
func PathPrefixExempter(prefixes ...string) Exempter {
	return ExempterFunc(func(r *http.Request) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	})
}

// HeaderExempter exempts requests that carry the header h.
func HeaderExempter(h string) Exempter {
	return ExempterFunc(func(r *http.Request) bool {
		return r.Header.Get(h) != ""
	})
}

// TokenSource looks up the unmasked token for a request. It is implemented
// by whatever issues the tokens.
type TokenSource interface {
	Token(r *http.Request) (string, bool)
}

var _ TokenSource = (TokenSourceFunc)(nil)

type TokenSourceFunc func(r *http.Request) (string, bool)

func (f TokenSourceFunc) Token(r *http.Request) (string, bool) {
	return f(r)
}

// CookieTokenSource reads the token from the named cookie.
func CookieTokenSource(name string) TokenSource {
	return TokenSourceFunc(func(r *http.Request) (string, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	})
}
