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
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	debreach "github.com/mikehelmick/go-debreach"
	"github.com/mikehelmick/go-debreach/internal/config"
)

var (
	tokenRE   = regexp.MustCompile(`name="csrfmiddlewaretoken" value="([^"]+)"`)
	commentRE = regexp.MustCompile(`<!-- [a-zA-Z0-9]{12,24} -->$`)
)

type testEnv struct {
	srv    *server
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Server.AccessLog = false

	s, err := newServer(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(s.handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: s, ts: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) postForm(t *testing.T, vals url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+"/form", vals)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func maskedFromPage(t *testing.T, body string) string {
	t.Helper()
	m := tokenRE.FindStringSubmatch(body)
	require.Len(t, m, 2, "no token in page:\n%s", body)
	return m[1]
}

func TestFormRoundTrip(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/?q=breach")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Results for: breach")
	assert.Regexp(t, commentRE, body)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	masked := maskedFromPage(t, body)
	assert.True(t, debreach.IsMasked(masked))
	assert.NotEqual(t, debreach.NotProvided, masked)

	_, again := e.get(t, "/?q=breach")
	assert.NotEqual(t, masked, maskedFromPage(t, again), "masked token repeated")

	resp, body = e.postForm(t, url.Values{
		"csrfmiddlewaretoken": {masked},
		"message":             {"hello"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Thanks, we received: hello")
	assert.Regexp(t, commentRE, body)
}

func TestFormTampered(t *testing.T) {
	e := newTestEnv(t)
	e.get(t, "/")

	resp, _ := e.postForm(t, url.Values{"csrfmiddlewaretoken": {"123$not-valid-ciphertext"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFormWrongToken(t *testing.T) {
	e := newTestEnv(t)
	e.get(t, "/")

	other, err := e.srv.masker.Encode(strings.Repeat("x", config.DefaultTokenLength))
	require.NoError(t, err)

	resp, _ := e.postForm(t, url.Values{"csrfmiddlewaretoken": {other}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.postForm(t, url.Values{"message": {"no token"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHeaderCarrier(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/token")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var tr debreach.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(body), &tr))
	require.True(t, debreach.IsMasked(tr.Token))

	send := func(token string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/echo", bytes.NewReader(nil))
		require.NoError(t, err)
		req.Header.Set("X-CSRFToken", token)
		req.Header.Set(requestIDHeader, "0b0c4f6e-4c53-4c8e-8d0f-3d3f6f3b2d61")
		resp, err := e.client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp = send(tr.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var echo echoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&echo))
	assert.True(t, echo.OK)
	assert.Equal(t, "0b0c4f6e-4c53-4c8e-8d0f-3d3f6f3b2d61", echo.RequestID)

	assert.Equal(t, http.StatusBadRequest, send("abc$%%%").StatusCode)
}

func TestRawIsExempt(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/raw")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<!doctype html><p>raw</p>", body)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.get(t, "/")

	resp, body := e.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "debreach_tokens_masked_total 1")
	assert.Contains(t, body, "debreach_comments_appended_total 1")
	assert.NotContains(t, body, "<!--")
}

func TestRequestIDGenerated(t *testing.T) {
	h := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, requestIDFrom(r.Context()))
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIDHeader, "not-a-uuid")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.NotEqual(t, "not-a-uuid", w.Body.String())
	assert.Equal(t, w.Header().Get(requestIDHeader), w.Body.String())
}

func TestMaskCommands(t *testing.T) {
	for _, mode := range []string{"stream", "block"} {
		t.Run(mode, func(t *testing.T) {
			var out bytes.Buffer
			app := newApp()
			app.Writer = &out
			require.NoError(t, app.Run([]string{"debreach-demo", "mask", "--mode", mode, "abc123"}))
			masked := strings.TrimSpace(out.String())
			assert.True(t, debreach.IsMasked(masked))

			out.Reset()
			app = newApp()
			app.Writer = &out
			require.NoError(t, app.Run([]string{"debreach-demo", "unmask", "--mode", mode, masked}))
			assert.Equal(t, "abc123", strings.TrimSpace(out.String()))
		})
	}
}
