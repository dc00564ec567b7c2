package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"gochessstudio/internal/config"
	"gochessstudio/internal/domain"
	"gochessstudio/internal/engines"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/undo"
)

func newEditor(t *testing.T) *Editor {
	t.Helper()
	e := NewEditor(EditorOptions{PGN: pgn.DefaultOptions(), History: undo.NewManager(undo.Config{})})
	if err := e.NewGame(filepath.Join(t.TempDir(), "game"), domain.DefaultHeaders()); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return e
}

func play(t *testing.T, e *Editor, sans ...string) {
	t.Helper()
	for _, s := range sans {
		if err := e.PlayMove(s); err != nil {
			t.Fatalf("PlayMove(%s): %v", s, err)
		}
	}
}

func TestEditorWithoutGame(t *testing.T) {
	e := NewEditor(EditorOptions{PGN: pgn.DefaultOptions()})
	if e.PGNText() != "" || e.MoveRows() != nil || e.Document() != nil {
		t.Fatalf("empty editor should render nothing")
	}
	if _, err := e.Navigate("next"); !errors.Is(err, ErrNoGame) {
		t.Fatalf("Navigate err = %v, want ErrNoGame", err)
	}
	if err := e.PlayMove("e4"); !errors.Is(err, ErrNoGame) {
		t.Fatalf("PlayMove err = %v, want ErrNoGame", err)
	}
	if fen, caption := e.Position(); fen != domain.StartFEN || caption != "Start position" {
		t.Fatalf("Position = %q %q", fen, caption)
	}
	if e.Title() != "Go Chess Studio" {
		t.Fatalf("Title = %q", e.Title())
	}
}

func TestEditorVariationAndToggles(t *testing.T) {
	e := newEditor(t)
	play(t, e, "e4", "e5", "Nf3")
	if moved, err := e.Navigate("prev"); !moved || err != nil {
		t.Fatalf("prev: moved=%v err=%v", moved, err)
	}
	play(t, e, "Nc3")
	if err := e.Comment("Vienna"); err != nil {
		t.Fatal(err)
	}
	if on, err := e.ToggleGlyph("!?"); !on || err != nil {
		t.Fatalf("ToggleGlyph: on=%v err=%v", on, err)
	}

	if got, want := e.PGNText(), "2. Nf3 (2. Nc3!? {Vienna})"; !strings.HasSuffix(got, want) {
		t.Fatalf("PGNText = %q, want suffix %q", got, want)
	}
	e.SetToggle(ToggleVariations, false)
	if got := e.PGNText(); got != "1. e4 e5 2. Nf3" {
		t.Fatalf("without variations = %q", got)
	}
	if e.ToggleValue(ToggleVariations) || !e.ToggleValue(ToggleComments) {
		t.Fatalf("toggle state not tracked: %+v", e.Options())
	}
	e.SetToggle(ToggleVariations, true)
	e.SetToggle(ToggleComments, false)
	if got := e.PGNText(); strings.Contains(got, "{") {
		t.Fatalf("comment leaked with comments off: %q", got)
	}

	rows := e.MoveRows()
	var labels []string
	for _, r := range rows {
		labels = append(labels, r.Label)
	}
	if got := strings.Join(labels, "|"); got != "1. e4|1... e5|2. Nf3|2. Nc3!?" {
		t.Fatalf("rows = %q", got)
	}
	if rows[3].Depth != 1 || !rows[3].Current || rows[2].Current {
		t.Fatalf("variation row = %+v", rows[3])
	}

	if err := e.Select(rows[0].Ref); err != nil {
		t.Fatal(err)
	}
	if moved, _ := e.Navigate("end"); !moved {
		t.Fatalf("end should move from the first move")
	}
	if rows := e.MoveRows(); !rows[2].Current {
		t.Fatalf("end should follow the main line to Nf3: %+v", rows)
	}
	if moved, _ := e.Navigate("next"); moved {
		t.Fatalf("next past the end should report false")
	}
}

func TestEditorUndoAndSave(t *testing.T) {
	e := newEditor(t)
	play(t, e, "d4", "d5")
	if !strings.HasSuffix(e.Title(), " *") {
		t.Fatalf("Title should mark unsaved edits: %q", e.Title())
	}
	if ok, err := e.Undo(); !ok || err != nil {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if got := e.PGNText(); got != "1. d4" {
		t.Fatalf("after undo = %q", got)
	}
	if ok, err := e.Redo(); !ok || err != nil {
		t.Fatalf("redo: ok=%v err=%v", ok, err)
	}
	if err := e.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.HasSuffix(e.Title(), " *") {
		t.Fatalf("Title after save: %q", e.Title())
	}

	path := e.Document().Path
	other := NewEditor(EditorOptions{PGN: pgn.DefaultOptions()})
	if err := other.OpenGame(path); err != nil {
		t.Fatalf("OpenGame: %v", err)
	}
	if got := other.PGNText(); got != "1. d4 d5" {
		t.Fatalf("reopened = %q", got)
	}
}

func TestSnapshotCarriesUnsavedMoves(t *testing.T) {
	e := newEditor(t)
	play(t, e, "c4")
	snap := e.Snapshot()
	if snap == e.Document() {
		t.Fatalf("Snapshot must not hand out the live document")
	}
	if len(snap.Doc.Tree.Root.Children) != 1 {
		t.Fatalf("snapshot should hold the unsaved move: %+v", snap.Doc.Tree.Root)
	}
	if len(e.Document().Doc.Tree.Root.Children) != 0 {
		t.Fatalf("the document itself must stay as saved")
	}
	if NewEditor(EditorOptions{}).Snapshot() != nil {
		t.Fatalf("no game, no snapshot")
	}
}

func TestEditorImportAndExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "alapin.pgn")
	text := "[Event \"Club\"]\n[White \"Berg\"]\n[Black \"Dahl\"]\n[Result \"*\"]\n\n1. e4 c5 2. c3 *\n"
	if err := os.WriteFile(src, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEditor(EditorOptions{PGN: pgn.DefaultOptions()})
	if err := e.ImportPGN(src); err != nil {
		t.Fatalf("ImportPGN: %v", err)
	}
	if e.Document() == nil || !strings.HasSuffix(e.Document().Path, ".gcs.json") {
		t.Fatalf("import should create a document next to the PGN")
	}
	if got := e.Title(); got != "Go Chess Studio - Berg vs Dahl" {
		t.Fatalf("Title = %q", got)
	}

	for _, name := range []string{"out.pgn", "out.pdf", "out.png", "out.svg"} {
		out := filepath.Join(dir, name)
		if err := e.ExportTo(out); err != nil {
			t.Fatalf("ExportTo(%s): %v", name, err)
		}
		if st, err := os.Stat(out); err != nil || st.Size() == 0 {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	b, _ := os.ReadFile(filepath.Join(dir, "out.pgn"))
	if !strings.Contains(string(b), "[White \"Berg\"]") || !strings.Contains(string(b), "1. e4 c5 2. c3 *") {
		t.Fatalf("exported PGN:\n%s", b)
	}
	if err := e.ExportTo(filepath.Join(dir, "out.docx")); err == nil {
		t.Fatalf("unknown format should fail")
	}
}

func TestEngineForm(t *testing.T) {
	eng, err := EngineForm{Path: " /opt/engines/stockfish_16.exe ", Elo: "3500"}.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if eng.Name != "stockfish_16" || eng.Path != "/opt/engines/stockfish_16.exe" || eng.Elo == nil || *eng.Elo != 3500 {
		t.Fatalf("engine = %+v", eng)
	}
	if _, err := (EngineForm{Name: "x", Path: "x", Elo: "strong"}).Engine(); !errors.Is(err, engines.ErrInvalidEngine) {
		t.Fatalf("bad elo err = %v", err)
	}

	reg, err := engines.LoadRegistry(filepath.Join(t.TempDir(), "engines.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	e := NewEditor(EditorOptions{Registry: reg})
	if _, err := e.AddEngine(EngineForm{Name: "Crafty", Path: "/usr/bin/crafty"}); err != nil {
		t.Fatalf("AddEngine: %v", err)
	}
	if _, err := e.AddEngine(EngineForm{Name: "Crafty", Path: "/usr/bin/crafty2"}); !errors.Is(err, engines.ErrInvalidEngine) {
		t.Fatalf("duplicate name err = %v", err)
	}
	if _, err := e.AddEngine(EngineForm{Name: "NoPath"}); !errors.Is(err, engines.ErrInvalidEngine) {
		t.Fatalf("missing path err = %v", err)
	}
	if got := e.Engines(); len(got) != 1 || got[0].Name != "Crafty" {
		t.Fatalf("Engines = %+v", got)
	}
}

func TestStartDownloadInstallsEngine(t *testing.T) {
	payload := []byte(strings.Repeat("#", 20000))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg, err := engines.LoadRegistry(filepath.Join(dir, "engines.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	e := NewEditor(EditorOptions{
		Registry:   reg,
		Downloader: engines.NewDownloader(srv.Client()),
		EnginesDir: filepath.Join(dir, "engines"),
	})

	done := make(chan engines.Progress, 1)
	id, err := e.StartDownload(context.Background(), domain.Engine{
		Name:        "Fruit",
		Path:        "fruit",
		DownloadURL: srv.URL + "/fruit",
	}, func(p engines.Progress) {
		if p.Done {
			done <- p
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	var last engines.Progress
	select {
	case last = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("download did not finish")
	}
	if last.ID != id || last.Err != nil || last.Percent != 100 {
		t.Fatalf("terminal event = %+v", last)
	}
	got, ok := reg.Get("Fruit")
	if !ok || !filepath.IsAbs(got.Path) {
		t.Fatalf("registry entry = %+v ok=%v", got, ok)
	}
	if runtime.GOOS != "windows" {
		st, err := os.Stat(got.Path)
		if err != nil || st.Mode()&0o111 == 0 {
			t.Fatalf("engine not executable: %v", err)
		}
	}
	if ds := e.Downloads(); len(ds) != 1 || !ds[0].Done {
		t.Fatalf("Downloads = %+v", ds)
	}
}

func TestStartDownloadReportsInvalidEngine(t *testing.T) {
	dir := t.TempDir()
	reg, _ := engines.LoadRegistry(filepath.Join(dir, "engines.yaml"))
	e := NewEditor(EditorOptions{Registry: reg, Downloader: engines.NewDownloader(nil), EnginesDir: dir})
	done := make(chan engines.Progress, 1)
	if _, err := e.StartDownload(context.Background(), domain.Engine{Name: "NoLink", Path: "x"}, func(p engines.Progress) {
		if p.Done {
			done <- p
		}
	}); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-done:
		if !errors.Is(p.Err, engines.ErrInvalidEngine) {
			t.Fatalf("terminal err = %v", p.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no terminal event")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Paths.EnginesDir = filepath.Join(dir, "engines")
	cfg.PGN.SpecialSymbols = true

	opt := OptionsFromConfig(cfg, "")
	if opt.EnginesDir != cfg.Paths.EnginesDir || opt.Registry == nil || opt.Downloader == nil || opt.History == nil {
		t.Fatalf("options not wired: %+v", opt)
	}
	if want := filepath.Join(dir, "engines", "engines.yaml"); opt.Registry.Path() != want {
		t.Fatalf("registry path = %q, want %q", opt.Registry.Path(), want)
	}
	if opt.Catalog == nil {
		t.Fatalf("catalog should use the configured backend")
	}
	if !NewEditor(opt).ToggleValue(ToggleSpecialSymbols) {
		t.Fatalf("PGN defaults should come from the config")
	}

	cfg.Backend.BaseURL = ""
	if OptionsFromConfig(cfg, "").Catalog != nil {
		t.Fatalf("no backend means no catalog")
	}
}
