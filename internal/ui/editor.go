/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui holds the desktop shell. The Fyne window lives behind the "fyne" build
// tag; Editor carries its state and actions so they work (and are tested) headless.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gochessstudio/internal/backend"
	"gochessstudio/internal/config"
	"gochessstudio/internal/domain"
	"gochessstudio/internal/engines"
	"gochessstudio/internal/export"
	applog "gochessstudio/internal/log"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/session"
	"gochessstudio/internal/storage"
	"gochessstudio/internal/telemetry"
	"gochessstudio/internal/tree"
	"gochessstudio/internal/undo"
)

// ErrNoGame is returned by actions that need an open game.
var ErrNoGame = errors.New("no game open")

// Toggle names one of the PGN panel's rendering switches.
type Toggle int

const (
	ToggleComments Toggle = iota
	ToggleSymbols
	ToggleVariations
	ToggleSpecialSymbols
)

func (t Toggle) String() string {
	switch t {
	case ToggleComments:
		return "Comments"
	case ToggleSymbols:
		return "Symbols"
	case ToggleVariations:
		return "Variations"
	case ToggleSpecialSymbols:
		return "Special symbols"
	}
	return "Toggle(" + strconv.Itoa(int(t)) + ")"
}

// Toggles lists the switches in panel order.
var Toggles = []Toggle{ToggleComments, ToggleSymbols, ToggleVariations, ToggleSpecialSymbols}

// EditorOptions wires an Editor to its collaborators. Zero values disable the
// matching feature (no undo, no engines).
type EditorOptions struct {
	PGN        pgn.Options
	History    *undo.Manager
	Registry   *engines.Registry
	Downloader *engines.Downloader
	Catalog    *engines.Catalog
	EnginesDir string
}

// MoveRow is one line of the move list: moves in PGN order, variations indented.
type MoveRow struct {
	Ref     tree.Ref
	Label   string
	Depth   int
	Current bool
}

// Editor is the state behind the main window: the open document and its session,
// the PGN panel toggles and the engine downloads in flight.
type Editor struct {
	mu   sync.Mutex
	opt  EditorOptions
	dh   *storage.DocumentHandle
	sess *session.Session
	log  *slog.Logger

	nextDownload int
	downloads    map[int]engines.Progress
}

// OptionsFromConfig wires an editor the way the desktop app runs it: undo history,
// the engine registry and downloads under the data dir, and the backend catalog.
func OptionsFromConfig(cfg config.AppConfig, token string) EditorOptions {
	l := applog.WithComponent("ui")
	opt := EditorOptions{
		PGN: cfg.PGN,
		History: undo.NewManager(undo.Config{
			MaxBytes:    16 * 1024 * 1024,
			MaxPerGame:  200,
			MinInterval: 300 * time.Millisecond,
		}),
		Downloader: engines.NewDownloader(nil),
	}
	if dir, err := cfg.EnginesDir(); err == nil {
		opt.EnginesDir = dir
	}
	if p, err := cfg.RegistryPath(); err == nil {
		reg, err := engines.LoadRegistry(p)
		if err != nil {
			l.Warn("engine registry unreadable", slog.Any("err", err))
		} else {
			opt.Registry = reg
		}
	}
	if cfg.Backend.BaseURL != "" {
		opt.Catalog = engines.NewCatalog(backend.NewClient(cfg.Backend.BaseURL, token), opt.Registry)
	}
	return opt
}

// NewEditor returns an editor without a game.
func NewEditor(opt EditorOptions) *Editor {
	return &Editor{
		opt:       opt,
		log:       applog.WithComponent("ui"),
		downloads: map[int]engines.Progress{},
	}
}

// Document returns the open document, or nil.
func (e *Editor) Document() *storage.DocumentHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dh
}

// Snapshot returns a copy of the open document holding the unsaved session state,
// for the crash handler to autosave. Nothing is written.
func (e *Editor) Snapshot() *storage.DocumentHandle {
	e.mu.Lock()
	dh, s := e.dh, e.sess
	e.mu.Unlock()
	if dh == nil || s == nil {
		return dh
	}
	cp := *dh
	cp.Doc.Game.Headers = s.Headers()
	cp.SetTree(s.Tree())
	return &cp
}

// Session returns the open game's session, or nil.
func (e *Editor) Session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

func (e *Editor) current() (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, ErrNoGame
	}
	return e.sess, nil
}

// NewGame creates a document at path holding an empty game with h.
func (e *Editor) NewGame(path string, h domain.Headers) error {
	t := tree.NewFromFEN(h.FEN)
	dh, err := storage.CreateDocument(path, domain.Game{Headers: h}, t)
	if err != nil {
		return err
	}
	e.attach(dh, t)
	e.log.Info("new game", slog.String("path", dh.Path))
	return nil
}

// OpenGame loads the document at path.
func (e *Editor) OpenGame(path string) error {
	dh, err := storage.OpenDocument(path)
	if err != nil {
		return err
	}
	t, err := dh.Tree()
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	e.attach(dh, t)
	e.log.Info("open game", slog.String("path", dh.Path))
	return nil
}

// ImportPGN replaces the open game with the first game of a PGN file and keeps the
// document path; without an open document the game is stored next to the PGN file.
func (e *Editor) ImportPGN(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	g, err := pgn.ParseGame(string(b))
	if err != nil {
		return fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	e.mu.Lock()
	dh := e.dh
	e.mu.Unlock()
	if dh == nil {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		dh, err = storage.CreateDocument(base, domain.Game{Headers: g.Headers}, g.Tree)
		if err != nil {
			return err
		}
		e.attach(dh, g.Tree)
	} else {
		dh.Doc.Game.Headers = g.Headers
		e.attach(dh, g.Tree)
		// unsaved until the next Save
		e.Session().SetHeaders(g.Headers)
	}
	telemetry.Event(telemetry.EventGameImported, map[string]any{"source": "pgn"})
	return nil
}

func (e *Editor) attach(dh *storage.DocumentHandle, t *tree.Tree) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		e.sess.Close()
	}
	e.dh = dh
	e.sess = session.New(1, dh.Doc.Game.Headers, t, e.opt.History)
}

// Save writes the session back to its document.
func (e *Editor) Save() error {
	e.mu.Lock()
	dh, s := e.dh, e.sess
	e.mu.Unlock()
	if s == nil {
		return ErrNoGame
	}
	dh.Doc.Game.Headers = s.Headers()
	dh.SetTree(s.Tree())
	if err := storage.SaveDocument(dh); err != nil {
		return err
	}
	s.MarkSaved()
	return nil
}

// Title is the window title for the open game.
func (e *Editor) Title() string {
	s, err := e.current()
	if err != nil {
		return "Go Chess Studio"
	}
	h := s.Headers()
	title := fmt.Sprintf("Go Chess Studio - %s vs %s", h.White, h.Black)
	if s.Dirty() {
		title += " *"
	}
	return title
}

// Options returns the PGN panel toggles.
func (e *Editor) Options() pgn.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opt.PGN
}

// SetToggle switches one rendering option.
func (e *Editor) SetToggle(t Toggle, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch t {
	case ToggleComments:
		e.opt.PGN.Comments = on
	case ToggleSymbols:
		e.opt.PGN.Symbols = on
	case ToggleVariations:
		e.opt.PGN.Variations = on
	case ToggleSpecialSymbols:
		e.opt.PGN.SpecialSymbols = on
	}
}

// ToggleValue reports the state of one switch.
func (e *Editor) ToggleValue(t Toggle) bool {
	o := e.Options()
	switch t {
	case ToggleComments:
		return o.Comments
	case ToggleSymbols:
		return o.Symbols
	case ToggleVariations:
		return o.Variations
	case ToggleSpecialSymbols:
		return o.SpecialSymbols
	}
	return false
}

// PGNText renders the top variation with the current toggles.
func (e *Editor) PGNText() string {
	s, err := e.current()
	if err != nil {
		return ""
	}
	return s.PGN(e.Options())
}

// Position returns the board at the cursor.
func (e *Editor) Position() (fen, caption string) {
	s, err := e.current()
	if err != nil {
		return domain.StartFEN, "Start position"
	}
	s.Tree().View(func(v tree.View) {
		fen, caption = export.PositionAt(v, v.Cursor())
	})
	return fen, caption
}

// Navigate runs one cursor movement: "next", "prev", "start" or "end".
// It reports whether the cursor moved.
func (e *Editor) Navigate(dir string) (bool, error) {
	s, err := e.current()
	if err != nil {
		return false, err
	}
	t := s.Tree()
	before := t.Cursor()
	switch dir {
	case "next":
		return t.Next(), nil
	case "prev":
		return t.Previous(), nil
	case "start":
		t.GoToStart()
	case "end":
		t.GoToEnd()
	default:
		return false, fmt.Errorf("unknown direction %q", dir)
	}
	return t.Cursor() != before, nil
}

// Select moves the cursor to r, typically a MoveRow picked in the list.
func (e *Editor) Select(r tree.Ref) error {
	s, err := e.current()
	if err != nil {
		return err
	}
	return s.Tree().GoToNode(r)
}

// MoveRows flattens the tree for the move list: each alternative follows the move
// it replaces, one level deeper, before the main line continues.
func (e *Editor) MoveRows() []MoveRow {
	s, err := e.current()
	if err != nil {
		return nil
	}
	var rows []MoveRow
	s.Tree().View(func(v tree.View) {
		cur := v.Cursor()
		add := func(r tree.Ref, depth int) {
			rows = append(rows, MoveRow{Ref: r, Label: moveLabel(v, r), Depth: depth, Current: r == cur})
		}
		var walk func(parent tree.Ref, depth int)
		walk = func(parent tree.Ref, depth int) {
			cs := v.Children(parent)
			if len(cs) == 0 {
				return
			}
			add(cs[0], depth)
			for _, alt := range cs[1:] {
				add(alt, depth+1)
				walk(alt, depth+1)
			}
			walk(cs[0], depth)
		}
		walk(v.Root(), 0)
	})
	return rows
}

func moveLabel(v tree.View, r tree.Ref) string {
	m, _ := v.Move(r)
	n, white := v.MoveNumber(r)
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(n))
	if white {
		sb.WriteString(". ")
	} else {
		sb.WriteString("... ")
	}
	sb.WriteString(m.SAN)
	for _, nag := range v.Symbols(r) {
		if g, ok := domain.LookupNAG(nag); ok {
			if g.Class == domain.GlyphMove {
				sb.WriteString(g.Text)
			} else {
				sb.WriteString(" " + g.Text)
			}
		}
	}
	return sb.String()
}

// PlayMove adds a move in SAN at the cursor.
func (e *Editor) PlayMove(san string) error {
	s, err := e.current()
	if err != nil {
		return err
	}
	_, err = s.AddMove(domain.Move{SAN: strings.TrimSpace(san)})
	return err
}

// Comment appends text to the current move's comments.
func (e *Editor) Comment(text string) error {
	s, err := e.current()
	if err != nil {
		return err
	}
	return s.AddComment(s.Tree().Cursor(), text)
}

// ToggleGlyph flips a glyph, given as text or $n, on the current move.
func (e *Editor) ToggleGlyph(text string) (bool, error) {
	s, err := e.current()
	if err != nil {
		return false, err
	}
	g, ok := domain.ParseGlyph(text)
	if !ok {
		return false, fmt.Errorf("%w: unknown glyph %q", tree.ErrInvalidInput, text)
	}
	return s.ToggleSymbol(s.Tree().Cursor(), g.NAG)
}

// Promote makes the current move the main line at its branch point.
func (e *Editor) Promote() error {
	s, err := e.current()
	if err != nil {
		return err
	}
	return s.PromoteVariation(s.Tree().Cursor())
}

// Demote moves the current move one slot down among its siblings.
func (e *Editor) Demote() error {
	s, err := e.current()
	if err != nil {
		return err
	}
	return s.DemoteVariation(s.Tree().Cursor())
}

// DeleteMove removes the current move and what follows it.
func (e *Editor) DeleteMove() error {
	s, err := e.current()
	if err != nil {
		return err
	}
	return s.DeleteNode(s.Tree().Cursor())
}

// Undo reverts the last edit.
func (e *Editor) Undo() (bool, error) {
	s, err := e.current()
	if err != nil {
		return false, err
	}
	return s.Undo()
}

// Redo re-applies the last undone edit.
func (e *Editor) Redo() (bool, error) {
	s, err := e.current()
	if err != nil {
		return false, err
	}
	return s.Redo()
}

// ExportTo writes the game to out; the extension picks the format
// (.pgn, .pdf, .png or .svg). Diagrams show the board at the cursor.
func (e *Editor) ExportTo(out string) error {
	s, err := e.current()
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(out))
	switch ext {
	case ".pgn":
		err = os.WriteFile(out, []byte(s.Export(e.Options())), 0o644)
	case ".pdf":
		err = export.ExportGamePDF(s.Headers(), s.Tree(), out, export.PDFOptions{PGN: e.Options(), Diagram: true})
	case ".png":
		fen, _ := e.Position()
		err = export.ExportDiagramPNG(fen, out, export.DiagramOptions{Coordinates: true})
	case ".svg":
		fen, _ := e.Position()
		err = export.ExportDiagramSVG(fen, out, export.DiagramOptions{Coordinates: true})
	default:
		return fmt.Errorf("unsupported export format %q", ext)
	}
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventGameExported, map[string]any{"format": strings.TrimPrefix(ext, ".")})
	return nil
}

// EngineForm is the add-engine form as typed by the user.
type EngineForm struct {
	Name    string
	Version string
	Path    string
	Elo     string
}

// Engine validates the form. An empty name is derived from the executable path.
func (f EngineForm) Engine() (domain.Engine, error) {
	e := domain.Engine{
		Name:    strings.TrimSpace(f.Name),
		Version: strings.TrimSpace(f.Version),
		Path:    strings.TrimSpace(f.Path),
	}
	if e.Name == "" {
		e.Name = engines.NameFromPath(e.Path)
	}
	if s := strings.TrimSpace(f.Elo); s != "" {
		elo, err := strconv.Atoi(s)
		if err != nil {
			return domain.Engine{}, fmt.Errorf("%w: elo %q is not a number", engines.ErrInvalidEngine, s)
		}
		e.Elo = &elo
	}
	return e, nil
}

// AddEngine registers the engine described by f.
func (e *Editor) AddEngine(f EngineForm) (domain.Engine, error) {
	if e.opt.Registry == nil {
		return domain.Engine{}, errors.New("engine registry not available")
	}
	eng, err := f.Engine()
	if err != nil {
		return domain.Engine{}, err
	}
	if err := e.opt.Registry.Add(eng); err != nil {
		return domain.Engine{}, err
	}
	e.log.Info("engine added", slog.String("name", eng.Name))
	return eng, nil
}

// Engines lists installed engines.
func (e *Editor) Engines() []domain.Engine {
	if e.opt.Registry == nil {
		return nil
	}
	return e.opt.Registry.List()
}

// DefaultEngines fetches the catalog for this OS.
func (e *Editor) DefaultEngines(ctx context.Context) ([]engines.Entry, error) {
	if e.opt.Catalog == nil {
		return nil, errors.New("engine catalog not configured")
	}
	return e.opt.Catalog.Defaults(ctx, engines.CurrentOS())
}

// StartDownload installs a catalog engine in the background and returns the
// download id. onProgress runs on the download goroutine for every event; the
// terminal one (Done) arrives after the engine is in the registry, with Err set
// when any step failed.
func (e *Editor) StartDownload(ctx context.Context, eng domain.Engine, onProgress func(engines.Progress)) (int, error) {
	if e.opt.Registry == nil || e.opt.Downloader == nil || e.opt.EnginesDir == "" {
		return 0, errors.New("engine downloads not configured")
	}
	e.mu.Lock()
	e.nextDownload++
	id := e.nextDownload
	e.downloads[id] = engines.Progress{ID: id}
	e.mu.Unlock()

	report := func(p engines.Progress) {
		e.mu.Lock()
		e.downloads[p.ID] = p
		e.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}
	events := make(chan engines.Progress, 1)
	installed := make(chan error, 1)
	go func() {
		start := time.Now()
		got, err := engines.Install(ctx, e.opt.Downloader, e.opt.Registry, e.opt.EnginesDir, id, eng, events)
		if err != nil {
			e.log.Warn("engine install failed", slog.String("name", eng.Name), slog.Any("err", err))
		} else {
			e.log.Info("engine installed", slog.String("name", got.Name), slog.Duration("took", time.Since(start)))
			telemetry.Event(telemetry.EventEngineInstalled, map[string]any{"os": engines.CurrentOS()})
		}
		installed <- err
	}()
	go func() {
		for p := range events {
			if !p.Done {
				report(p)
				continue
			}
			if err := <-installed; err != nil && p.Err == nil {
				p.Err = err
			}
			report(p)
			return
		}
	}()
	return id, nil
}

// Downloads returns the last event of every download, ordered by id.
func (e *Editor) Downloads() []engines.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]engines.Progress, 0, len(e.downloads))
	for _, p := range e.downloads {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
