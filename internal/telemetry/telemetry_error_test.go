/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func waitStats(t *testing.T, c *Client, ok func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ok(c.Stats()) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return c.Stats()
}

func TestRejectedEventCountsAsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()

	c.Event(EventGamePublished, map[string]any{"plies": 61})
	st := waitStats(t, c, func(s Stats) bool { return s.Failed == 1 })
	if st.Failed != 1 || st.Sent != 0 {
		t.Fatalf("stats after 503: %+v", st)
	}
}

func TestUnreachableEndpointCountsAsFailed(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()

	c.Event(EventEngineInstalled, map[string]any{"engine": "stockfish"})
	c.UploadCrash([]byte("panic: index out of range"))
	st := waitStats(t, c, func(s Stats) bool { return s.Failed == 1 })
	if st.Failed != 1 || st.Sent != 0 {
		t.Fatalf("stats after dial failure: %+v", st)
	}
}
