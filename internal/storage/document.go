/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/tree"
)

const (
	DocumentExt     = ".gcs.json"
	DocumentFormat  = "gochessstudio.game"
	DocumentVersion = 1
	BackupsDirName  = "backups"
)

// ErrUnsupportedDocument is returned for files written by a newer version or
// another application.
var ErrUnsupportedDocument = errors.New("unsupported game document")

// GameDocument is the on-disk form of a single game.
type GameDocument struct {
	Format  string        `json:"format"`
	Version int           `json:"version"`
	Game    domain.Game   `json:"game"`
	Tree    tree.Document `json:"tree"`
	SavedAt time.Time     `json:"savedAt"`
}

// DocumentHandle ties a loaded document to its path.
type DocumentHandle struct {
	Path string
	Doc  GameDocument
}

// CreateDocument writes a new document for g and t at path. The ".gcs.json"
// extension is appended when missing.
func CreateDocument(path string, g domain.Game, t *tree.Tree) (*DocumentHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	if !strings.HasSuffix(path, DocumentExt) {
		path += DocumentExt
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	if t == nil {
		t = tree.NewFromFEN(g.Headers.FEN)
	}
	dh := &DocumentHandle{Path: path, Doc: GameDocument{Game: g}}
	dh.SetTree(t)
	if err := SaveDocument(dh); err != nil {
		return nil, err
	}
	return dh, nil
}

// OpenDocument loads the document at path. If it cannot be read or decoded it
// falls back to the newest backup.
func OpenDocument(path string) (*DocumentHandle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		doc, berr := openFromLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
		}
		return &DocumentHandle{Path: path, Doc: *doc}, nil
	}
	doc, derr := decodeDocument(b)
	if derr != nil {
		if errors.Is(derr, ErrUnsupportedDocument) {
			return nil, derr
		}
		bdoc, berr := openFromLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("parse document: %w; backup attempt: %v", derr, berr)
		}
		return &DocumentHandle{Path: path, Doc: *bdoc}, nil
	}
	return &DocumentHandle{Path: path, Doc: *doc}, nil
}

func decodeDocument(b []byte) (*GameDocument, error) {
	var d GameDocument
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if d.Format != DocumentFormat || d.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: format %q version %d", ErrUnsupportedDocument, d.Format, d.Version)
	}
	if _, err := tree.FromDocument(d.Tree); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &d, nil
}

// Tree rebuilds the move tree held by the document.
func (dh *DocumentHandle) Tree() (*tree.Tree, error) {
	return tree.FromDocument(dh.Doc.Tree)
}

// SetTree stores t's current content in the document. It does not write to disk.
func (dh *DocumentHandle) SetTree(t *tree.Tree) {
	dh.Doc.Tree = t.Document()
	dh.Doc.Game.Headers.FEN = ""
	if fen := dh.Doc.Tree.StartFEN; fen != domain.StartFEN {
		dh.Doc.Game.Headers.FEN = fen
	}
}

// SaveDocument writes the document with transactional semantics and keeps a
// timestamped backup of the previous file (if present).
func SaveDocument(dh *DocumentHandle) error {
	if dh == nil {
		return errors.New("nil DocumentHandle")
	}
	if dh.Path == "" {
		return errors.New("invalid DocumentHandle: missing path")
	}
	dh.Doc.Format = DocumentFormat
	dh.Doc.Version = DocumentVersion
	dh.Doc.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(dh.Doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	bdir := backupsDir(dh.Path)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(dh.Path); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(dh.Path), stamp))
		if cerr := copyFile(dh.Path, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	// temp file in the same directory, then rename over the target
	temp := filepath.Join(filepath.Dir(dh.Path), fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(dh.Path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// Windows refuses to rename over an existing file
	if _, err := os.Stat(dh.Path); err == nil {
		_ = os.Remove(dh.Path)
	}
	if rerr := os.Rename(temp, dh.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// SaveDocumentAs writes the document to newPath and updates the handle.
func SaveDocumentAs(dh *DocumentHandle, newPath string) error {
	if dh == nil {
		return errors.New("nil DocumentHandle")
	}
	if newPath == "" {
		return errors.New("new path is empty")
	}
	if !strings.HasSuffix(newPath, DocumentExt) {
		newPath += DocumentExt
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	dh.Path = newPath
	return SaveDocument(dh)
}

// AutosaveCrashSnapshot writes the in-memory document next to the backups
// without touching the main file. It returns the snapshot path.
func AutosaveCrashSnapshot(dh *DocumentHandle) (string, error) {
	if dh == nil || dh.Path == "" {
		return "", errors.New("nil DocumentHandle")
	}
	bdir := backupsDir(dh.Path)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	doc := dh.Doc
	doc.Format, doc.Version, doc.SavedAt = DocumentFormat, DocumentVersion, time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash snapshot: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", strings.TrimSuffix(filepath.Base(dh.Path), DocumentExt), stamp))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

func backupsDir(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), BackupsDirName)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup loads the newest readable backup of the document at path.
func openFromLatestBackup(path string) (*GameDocument, error) {
	bdir := backupsDir(path)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			continue
		}
		if d, err := decodeDocument(b); err == nil {
			return d, nil
		}
	}
	return nil, errors.New("no readable backup")
}
