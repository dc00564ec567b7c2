/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/storage"
	"gochessstudio/internal/tree"
)

// silence captures stderr and intercepts exitFn for the duration of the test.
func silence(t *testing.T) *int {
	t.Helper()
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	code := new(int)
	oldExit := exitFn
	exitFn = func(c int) { *code = c }
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r) // drain pipe
		exitFn = oldExit
	})
	return code
}

func newDocument(t *testing.T) *storage.DocumentHandle {
	t.Helper()
	tr := tree.New()
	if _, err := tr.AddMove(domain.Move{SAN: "d4"}); err != nil {
		t.Fatal(err)
	}
	dh, err := storage.CreateDocument(filepath.Join(t.TempDir(), "crashy"), domain.Game{Headers: domain.DefaultHeaders()}, tr)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return dh
}

func findFile(t *testing.T, dir, prefix, suffix string) string {
	t.Helper()
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), suffix) {
			return filepath.Join(dir, f.Name())
		}
	}
	return ""
}

// TestRecover_Panic ensures Recover handles a panic, writes a report, autosaves the
// document, and does not terminate the test process due to injected exitFn.
func TestRecover_Panic(t *testing.T) {
	code := silence(t)
	dh := newDocument(t)

	func() {
		defer Recover(dh)
		panic("boom")
	}()

	bdir := filepath.Join(filepath.Dir(dh.Path), storage.BackupsDirName)
	report := findFile(t, bdir, "crash-", ".log")
	if report == "" {
		t.Fatalf("expected crash report file under backups dir")
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}
	if findFile(t, bdir, "crashy.crash-", ".json") == "" {
		t.Fatalf("expected autosave snapshot under backups dir")
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecoverCurrent_UsesLatestDocument(t *testing.T) {
	code := silence(t)
	var dh *storage.DocumentHandle

	func() {
		defer RecoverCurrent(func() *storage.DocumentHandle { return dh })
		dh = newDocument(t)
		panic("late")
	}()

	bdir := filepath.Join(filepath.Dir(dh.Path), storage.BackupsDirName)
	if findFile(t, bdir, "crash-", ".log") == "" {
		t.Fatalf("expected crash report next to the document opened after defer")
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code := silence(t)
	*code = -1
	func() {
		defer Recover(nil)
	}()
	if *code != -1 {
		t.Fatalf("exit should not be called without a panic")
	}
}
