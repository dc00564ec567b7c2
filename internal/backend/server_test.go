/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gochessstudio/internal/domain"
)

type memStore struct {
	mu          sync.Mutex
	games       []GameSummary
	pgns        map[int64]string
	engines     map[string][]domain.Engine
	engineCalls int
	pingErr     error
}

func newMemStore() *memStore {
	elo := 3500
	return &memStore{
		pgns: map[int64]string{},
		engines: map[string][]domain.Engine{
			"linux": {{Name: "Stockfish", Version: "16", Path: "stockfish/stockfish-ubuntu-x86-64", Elo: &elo,
				DownloadURL: "https://example.invalid/stockfish-ubuntu.zip", DownloadSize: 42}},
		},
	}
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) ListGames(_ context.Context, f GameFilter) ([]GameSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GameSummary
	for i := len(m.games) - 1; i >= 0; i-- {
		g := m.games[i]
		if p := strings.ToLower(f.Player); p != "" &&
			!strings.Contains(strings.ToLower(g.White), p) && !strings.Contains(strings.ToLower(g.Black), p) {
			continue
		}
		if f.ECO != "" && !strings.HasPrefix(g.ECO, strings.ToUpper(f.ECO)) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *memStore) GamePGN(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pgns[id]
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (m *memStore) PublishGame(_ context.Context, h domain.Headers, pgnText, publisher string) (GameSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := GameSummary{
		ID:          int64(len(m.games) + 1),
		StableID:    fmt.Sprintf("stable-%d", len(m.games)+1),
		Event:       h.Event,
		Date:        h.Date,
		White:       h.White,
		Black:       h.Black,
		Result:      h.Result,
		ECO:         h.ECO,
		PlyCount:    h.PlyCount,
		PublishedBy: publisher,
		PublishedAt: time.Now().UTC(),
	}
	m.games = append(m.games, g)
	m.pgns[g.ID] = pgnText
	return g, nil
}

func (m *memStore) Engines(_ context.Context, os string) ([]domain.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineCalls++
	return m.engines[os], nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = val
	return nil
}

const samplePGN = `[Event "Club Championship"]
[Site "Oldenburg"]
[Date "2024.03.01"]
[Round "3"]
[White "Anna Berg"]
[Black "Carl Dahl"]
[Result "1-0"]
[ECO "B22"]

1. e4 c5 2. c3 {Alapin} Nf6 (2... d5) 3. e5 1-0
`

func newTestServer(t *testing.T) (*Server, *memStore, *httptest.Server) {
	t.Helper()
	st := newMemStore()
	s := NewServer(st, &memCache{}, "test-secret")
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, st, ts
}

func token(t *testing.T, secret, sub string) string {
	t.Helper()
	tok, err := SignToken(secret, sub, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func doReq(t *testing.T, method, url, tok, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestHealthReadyVersion(t *testing.T) {
	_, st, ts := newTestServer(t)
	if resp, body := doReq(t, http.MethodGet, ts.URL+"/healthz", "", ""); resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/readyz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: %d", resp.StatusCode)
	}
	st.pingErr = fmt.Errorf("down")
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/readyz", "", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz with db down: %d", resp.StatusCode)
	}
	if resp, body := doReq(t, http.MethodGet, ts.URL+"/version", "", ""); resp.StatusCode != http.StatusOK || body == "" {
		t.Fatalf("version: %d %q", resp.StatusCode, body)
	}
}

func TestAuthRequired(t *testing.T) {
	_, _, ts := newTestServer(t)
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/api/games", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", resp.StatusCode)
	}
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/api/games", token(t, "other-secret", "eve"), ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("foreign token: got %d", resp.StatusCode)
	}

	resp, body := doReq(t, http.MethodPost, ts.URL+"/api/auth/token", "", `{"subject":"anna","ttl_seconds":60}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token: %d %s", resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil || out.Token == "" {
		t.Fatalf("token body %q: %v", body, err)
	}
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/api/games", out.Token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("with token: got %d", resp.StatusCode)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	tok, err := SignToken("s", "anna", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken("s", tok); err == nil {
		t.Fatalf("expected expired token to fail")
	}
	if _, err := VerifyToken("s", "garbage"); err == nil {
		t.Fatalf("expected malformed token to fail")
	}
}

func TestPublishListAndDownload(t *testing.T) {
	_, _, ts := newTestServer(t)
	tok := token(t, "test-secret", "anna")

	resp, body := doReq(t, http.MethodPost, ts.URL+"/api/games", tok, samplePGN)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish: %d %s", resp.StatusCode, body)
	}
	var sum GameSummary
	if err := json.Unmarshal([]byte(body), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.ID != 1 || sum.White != "Anna Berg" || sum.ECO != "B22" || sum.PublishedBy != "anna" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.PlyCount != 5 {
		t.Fatalf("ply count: got %d want 5", sum.PlyCount)
	}

	resp, body = doReq(t, http.MethodGet, ts.URL+"/api/games?player=berg", tok, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	var list []GameSummary
	if err := json.Unmarshal([]byte(body), &list); err != nil || len(list) != 1 {
		t.Fatalf("list body %q: %v", body, err)
	}
	resp, body = doReq(t, http.MethodGet, ts.URL+"/api/games?player=nobody", tok, "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Fatalf("empty list: %d %q", resp.StatusCode, body)
	}

	resp, body = doReq(t, http.MethodGet, ts.URL+"/api/games/1/pgn", tok, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pgn: %d", resp.StatusCode)
	}
	for _, want := range []string{`[White "Anna Berg"]`, "{Alapin}", "(2... d5)", "[PlyCount \"5\"]"} {
		if !strings.Contains(body, want) {
			t.Fatalf("pgn missing %q:\n%s", want, body)
		}
	}
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/api/games/99/pgn", tok, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game: got %d", resp.StatusCode)
	}
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/api/games/abc/pgn", tok, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: got %d", resp.StatusCode)
	}
}

func TestPublishRejectsBadInput(t *testing.T) {
	_, st, ts := newTestServer(t)
	tok := token(t, "test-secret", "anna")
	for name, body := range map[string]string{
		"empty":       "  ",
		"malformed":   "[Event broken]\n\n1. e4 *",
		"bad_comment": "1. e4 {never closed *",
	} {
		if resp, b := doReq(t, http.MethodPost, ts.URL+"/api/games", tok, body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: got %d %s", name, resp.StatusCode, b)
		}
	}
	if len(st.games) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(st.games))
	}
}

func TestEnginesCached(t *testing.T) {
	_, st, ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		resp, body := doReq(t, http.MethodGet, ts.URL+"/api/engines?os=linux", "", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("engines: %d %s", resp.StatusCode, body)
		}
		var list []domain.Engine
		if err := json.Unmarshal([]byte(body), &list); err != nil || len(list) != 1 {
			t.Fatalf("engines body %q: %v", body, err)
		}
		if list[0].DownloadURL == "" || list[0].Elo == nil || *list[0].Elo != 3500 {
			t.Fatalf("unexpected engine: %+v", list[0])
		}
	}
	if st.engineCalls != 1 {
		t.Fatalf("store hit %d times, want 1", st.engineCalls)
	}
	if resp, _ := doReq(t, http.MethodGet, ts.URL+"/api/engines?os=amiga", "", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown os: got %d", resp.StatusCode)
	}
	resp, body := doReq(t, http.MethodGet, ts.URL+"/api/engines?os=windows", "", "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Fatalf("no engines: %d %q", resp.StatusCode, body)
	}
}

func TestLiveBroadcastOnPublish(t *testing.T) {
	s, _, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/games/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if resp, body := doReq(t, http.MethodPost, ts.URL+"/api/games", token(t, "test-secret", "anna"), samplePGN); resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish: %d %s", resp.StatusCode, body)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var sum GameSummary
	if err := json.Unmarshal(msg, &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Black != "Carl Dahl" {
		t.Fatalf("unexpected broadcast: %s", msg)
	}
}
