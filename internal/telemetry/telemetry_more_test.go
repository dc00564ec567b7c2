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
	"sync/atomic"
	"testing"
	"time"
)

func TestOptedOutImportIsNotReported(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("client without opt-in must be disabled")
	}
	c.Event(EventGameImported, map[string]any{"games": 12, "source": "file"})
	c.UploadCrash([]byte("panic: boom"))

	// opted in, but an unnamed event is not queued
	c2 := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	defer c2.Close()
	c2.Event("", map[string]any{"games": 1})
	c2.Flush(nil)

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
	for _, st := range []Stats{c.Stats(), c2.Stats()} {
		if st != (Stats{}) {
			t.Fatalf("stats should stay empty: %+v", st)
		}
	}
}

func TestOptInWithoutURLIsDisabled(t *testing.T) {
	t.Cleanup(func() { NewDefault(Config{}) })
	NewDefault(Config{OptIn: true})
	if Enabled() {
		t.Fatalf("default client without an events URL must be disabled")
	}
	Event(EventEngineInstalled, map[string]any{"engine": "stockfish"})
	if st := current().Stats(); st != (Stats{}) {
		t.Fatalf("stats: %+v", st)
	}
}
