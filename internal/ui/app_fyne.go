//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"gochessstudio/internal/config"
	"gochessstudio/internal/crash"
	"gochessstudio/internal/domain"
	"gochessstudio/internal/engines"
	"gochessstudio/internal/export"
	applog "gochessstudio/internal/log"
	"gochessstudio/internal/storage"
	"gochessstudio/internal/version"
)

const (
	recentPrefsKey = "recent.documents"
	recentMax      = 10
)

// Run starts the Fyne desktop shell. Pass a game document to open it immediately.
func Run(docPath string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	ed := NewEditor(OptionsFromConfig(cfg, token))
	defer crash.RecoverCurrent(ed.Snapshot)

	fyneApp := app.NewWithID("gochessstudio")
	w := fyneApp.NewWindow("Go Chess Studio")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1100), 800)
	winH := max(prefs.IntWithFallback("window.height", 760), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	board := NewBoardView()
	board.flip = prefs.BoolWithFallback("board.flip", false)

	pgnText := widget.NewLabel("")
	pgnText.Wrapping = fyne.TextWrapWord

	var rows []MoveRow
	moveList := widget.NewList(
		func() int { return len(rows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			lbl := o.(*widget.Label)
			if i < 0 || int(i) >= len(rows) {
				lbl.SetText("")
				return
			}
			r := rows[i]
			lbl.TextStyle = fyne.TextStyle{Bold: r.Current}
			lbl.SetText(strings.Repeat("    ", r.Depth) + r.Label)
		},
	)

	refresh := func() {
		rows = ed.MoveRows()
		moveList.Refresh()
		pgnText.SetText(ed.PGNText())
		board.SetPosition(ed.Position())
		w.SetTitle(ed.Title())
	}
	report := func(err error) {
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		refresh()
	}

	moveList.OnSelected = func(id widget.ListItemID) {
		if int(id) < len(rows) {
			report(ed.Select(rows[id].Ref))
		}
		moveList.UnselectAll()
	}

	// PGN panel with its rendering switches
	var checks []fyne.CanvasObject
	for _, tg := range Toggles {
		tg := tg
		key := "pgn." + strings.ReplaceAll(strings.ToLower(tg.String()), " ", "_")
		ed.SetToggle(tg, prefs.BoolWithFallback(key, ed.ToggleValue(tg)))
		chk := widget.NewCheck(tg.String(), func(on bool) {
			ed.SetToggle(tg, on)
			prefs.SetBool(key, on)
			refresh()
		})
		chk.SetChecked(ed.ToggleValue(tg))
		checks = append(checks, chk)
	}
	pgnPane := container.NewBorder(
		container.NewVBox(widget.NewLabel("PGN"), container.NewHBox(checks...)),
		nil, nil, nil,
		container.NewVScroll(pgnText),
	)

	navigate := func(dir string) {
		if _, err := ed.Navigate(dir); err != nil {
			status.SetText(err.Error())
			return
		}
		refresh()
	}
	navBar := container.NewHBox(
		widget.NewButton("|<", func() { navigate("start") }),
		widget.NewButton("<", func() { navigate("prev") }),
		widget.NewButton(">", func() { navigate("next") }),
		widget.NewButton(">|", func() { navigate("end") }),
		widget.NewButton("Flip", func() {
			board.SetFlip(!board.flip)
			prefs.SetBool("board.flip", board.flip)
		}),
	)

	moveEntry := widget.NewEntry()
	moveEntry.SetPlaceHolder("Move (SAN), e.g. Nf3")
	moveEntry.OnSubmitted = func(s string) {
		if strings.TrimSpace(s) == "" {
			return
		}
		if err := ed.PlayMove(s); err != nil {
			dialog.ShowError(err, w)
			return
		}
		moveEntry.SetText("")
		refresh()
	}
	center := container.NewBorder(nil, container.NewVBox(navBar, moveEntry), nil, nil, board)

	split := container.NewHSplit(center, container.NewVSplit(moveList, pgnPane))
	split.Offset = 0.55
	w.SetContent(container.NewBorder(nil, status, nil, nil, split))

	// Arrow keys drive the navigator unless an entry has focus.
	w.Canvas().SetOnTypedKey(func(k *fyne.KeyEvent) {
		switch k.Name {
		case fyne.KeyLeft:
			navigate("prev")
		case fyne.KeyRight:
			navigate("next")
		case fyne.KeyHome:
			navigate("start")
		case fyne.KeyEnd:
			navigate("end")
		}
	})

	openDoc := func(path string) {
		if err := ed.OpenGame(path); err != nil {
			dialog.ShowError(err, w)
			return
		}
		addRecentDocument(prefs, ed.Document().Path)
		status.SetText("Opened " + ed.Document().Path)
		refresh()
	}

	// File menu
	newItem := fyne.NewMenuItem("New Game…", func() {
		white, black, event := widget.NewEntry(), widget.NewEntry(), widget.NewEntry()
		fen := widget.NewEntry()
		fen.SetPlaceHolder("start position")
		dialog.ShowForm("New Game", "Create", "Cancel", []*widget.FormItem{
			widget.NewFormItem("White", white),
			widget.NewFormItem("Black", black),
			widget.NewFormItem("Event", event),
			widget.NewFormItem("FEN", fen),
		}, func(ok bool) {
			if !ok {
				return
			}
			h := domain.DefaultHeaders()
			for _, f := range []struct {
				dst *string
				src string
			}{{&h.White, white.Text}, {&h.Black, black.Text}, {&h.Event, event.Text}} {
				if s := strings.TrimSpace(f.src); s != "" {
					*f.dst = s
				}
			}
			h.FEN = strings.TrimSpace(fen.Text)
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil || uc == nil {
					return
				}
				path := uc.URI().Path()
				_ = uc.Close()
				_ = os.Remove(path)
				if err := ed.NewGame(strings.TrimSuffix(path, storage.DocumentExt), h); err != nil {
					dialog.ShowError(err, w)
					return
				}
				addRecentDocument(prefs, ed.Document().Path)
				refresh()
			}, w)
			save.SetFileName("game" + storage.DocumentExt)
			save.Show()
		}, w)
	})
	openItem := fyne.NewMenuItem("Open…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			openDoc(path)
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
		fd.Show()
	})
	recentMenu := fyne.NewMenuItem("Open Recent", nil)
	recentMenu.ChildMenu = fyne.NewMenu("")
	rebuildRecent := func() {
		recentMenu.ChildMenu.Items = nil
		for _, p := range loadRecentDocuments(prefs) {
			p := p
			recentMenu.ChildMenu.Items = append(recentMenu.ChildMenu.Items, fyne.NewMenuItem(filepath.Base(p), func() { openDoc(p) }))
		}
	}
	rebuildRecent()
	importItem := fyne.NewMenuItem("Import PGN…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			report(ed.ImportPGN(path))
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".pgn"}))
		fd.Show()
	})
	saveItem := fyne.NewMenuItem("Save", func() {
		if err := ed.Save(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + ed.Document().Path)
		refresh()
	})
	exportItem := func(label, ext string) *fyne.MenuItem {
		return fyne.NewMenuItem(label, func() {
			if ed.Session() == nil {
				dialog.ShowInformation(label, "No game open.", w)
				return
			}
			fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil || uc == nil {
					return
				}
				out := uc.URI().Path()
				_ = uc.Close()
				if err := ed.ExportTo(out); err != nil {
					dialog.ShowError(err, w)
					return
				}
				status.SetText("Exported " + out)
			}, w)
			fd.SetFileName("game" + ext)
			fd.Show()
		})
	}
	fileMenu := fyne.NewMenu("File", newItem, openItem, recentMenu, importItem, fyne.NewMenuItemSeparator(), saveItem)
	exportMenu := fyne.NewMenu("Export",
		exportItem("PGN…", ".pgn"),
		exportItem("PDF…", ".pdf"),
		exportItem("Diagram PNG…", ".png"),
		exportItem("Diagram SVG…", ".svg"),
	)

	// Edit menu
	undoFn := func() {
		if ok, err := ed.Undo(); err != nil || !ok {
			status.SetText("Nothing to undo")
			return
		}
		refresh()
	}
	redoFn := func() {
		if ok, err := ed.Redo(); err != nil || !ok {
			status.SetText("Nothing to redo")
			return
		}
		refresh()
	}
	commentItem := fyne.NewMenuItem("Add Comment…", func() {
		entry := widget.NewMultiLineEntry()
		dialog.ShowForm("Comment", "Add", "Cancel", []*widget.FormItem{widget.NewFormItem("Text", entry)}, func(ok bool) {
			if ok {
				report(ed.Comment(entry.Text))
			}
		}, w)
	})
	var glyphItems []*fyne.MenuItem
	for _, g := range domain.Glyphs {
		g := g
		glyphItems = append(glyphItems, fyne.NewMenuItem(fmt.Sprintf("%s  %s", g.Text, g.Name), func() {
			_, err := ed.ToggleGlyph(g.NAG.Dollar())
			report(err)
		}))
	}
	glyphMenu := fyne.NewMenuItem("Toggle Symbol", nil)
	glyphMenu.ChildMenu = fyne.NewMenu("", glyphItems...)
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", undoFn),
		fyne.NewMenuItem("Redo", redoFn),
		fyne.NewMenuItemSeparator(),
		commentItem,
		glyphMenu,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Promote Variation", func() { report(ed.Promote()) }),
		fyne.NewMenuItem("Demote Variation", func() { report(ed.Demote()) }),
		fyne.NewMenuItem("Delete Move", func() { report(ed.DeleteMove()) }),
	)

	// Engines menu
	addEngineItem := fyne.NewMenuItem("Add Engine…", func() { showAddEngineDialog(w, ed, status) })
	installedItem := fyne.NewMenuItem("Installed Engines", func() {
		list := ed.Engines()
		if len(list) == 0 {
			dialog.ShowInformation("Engines", "No engines installed.", w)
			return
		}
		var lines []string
		for _, e := range list {
			lines = append(lines, fmt.Sprintf("%s %s  (%s)", e.Name, e.Version, e.Path))
		}
		dialog.ShowInformation("Engines", strings.Join(lines, "\n"), w)
	})
	downloadItem := fyne.NewMenuItem("Download Engines…", func() { showDownloadDialog(w, ed, status, l) })
	enginesMenu := fyne.NewMenu("Engines", addEngineItem, installedItem, downloadItem)

	aboutMenu := fyne.NewMenu("Help", fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("About", "Go Chess Studio "+version.String(), w)
	}))
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, exportMenu, enginesMenu, aboutMenu))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { saveItem.Action() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { undoFn() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { redoFn() })

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if s := ed.Session(); s != nil && s.Dirty() {
			dialog.ShowConfirm("Unsaved changes", "Save the game before closing?", func(ok bool) {
				if ok {
					if err := ed.Save(); err != nil {
						l.Error("save on close failed", slog.Any("err", err))
					}
				}
				w.Close()
			}, w)
			return
		}
		w.Close()
	})

	if docPath != "" {
		openDoc(docPath)
		rebuildRecent()
	}
	refresh()
	w.ShowAndRun()
	return nil
}

func showAddEngineDialog(w fyne.Window, ed *Editor, status *widget.Label) {
	name, ver, path, elo := widget.NewEntry(), widget.NewEntry(), widget.NewEntry(), widget.NewEntry()
	name.SetPlaceHolder("derived from the file name")
	browse := widget.NewButton("Browse…", func() {
		dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path.SetText(rc.URI().Path())
			_ = rc.Close()
			if strings.TrimSpace(name.Text) == "" {
				name.SetText(engines.NameFromPath(path.Text))
			}
		}, w).Show()
	})
	dialog.ShowForm("Add Engine", "Add", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Executable", container.NewBorder(nil, nil, nil, browse, path)),
		widget.NewFormItem("Name", name),
		widget.NewFormItem("Version", ver),
		widget.NewFormItem("Elo", elo),
	}, func(ok bool) {
		if !ok {
			return
		}
		e, err := ed.AddEngine(EngineForm{Name: name.Text, Version: ver.Text, Path: path.Text, Elo: elo.Text})
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Added engine " + e.Name)
	}, w)
}

func showDownloadDialog(w fyne.Window, ed *Editor, status *widget.Label, l *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	list, err := ed.DefaultEngines(ctx)
	if err != nil {
		dialog.ShowError(err, w)
		return
	}
	if len(list) == 0 {
		dialog.ShowInformation("Download Engines", "The catalog has no engines for this system.", w)
		return
	}
	rowsBox := container.NewVBox()
	for _, entry := range list {
		entry := entry
		bar := widget.NewProgressBar()
		bar.Hide()
		label := widget.NewLabel(entry.Name)
		if entry.Version != "" {
			label.SetText(entry.Name + " " + entry.Version)
		}
		var btn *widget.Button
		btn = widget.NewButton("Install", func() {
			btn.Disable()
			bar.Show()
			_, err := ed.StartDownload(context.Background(), entry.Engine, func(p engines.Progress) {
				fyne.Do(func() {
					bar.SetValue(p.Percent / 100)
					if !p.Done {
						return
					}
					if p.Err != nil {
						l.Warn("engine download failed", slog.String("name", entry.Name), slog.Any("err", p.Err))
						btn.SetText("Retry")
						btn.Enable()
						status.SetText("Download failed: " + p.Err.Error())
						return
					}
					btn.SetText("Installed")
					status.SetText("Installed " + entry.Name)
				})
			})
			if err != nil {
				btn.Enable()
				dialog.ShowError(err, w)
			}
		})
		if entry.Installed {
			btn.SetText("Installed")
			btn.Disable()
		}
		rowsBox.Add(container.NewBorder(nil, bar, nil, btn, label))
	}
	d := dialog.NewCustom("Download Engines", "Close", container.NewVScroll(rowsBox), w)
	d.Resize(fyne.NewSize(480, 360))
	d.Show()
}

// BoardView shows the position at the cursor as a rendered diagram.
type BoardView struct {
	widget.BaseWidget
	fen     string
	caption string
	flip    bool
}

func NewBoardView() *BoardView {
	b := &BoardView{fen: domain.StartFEN, caption: "Start position"}
	b.ExtendBaseWidget(b)
	return b
}

// SetPosition shows fen with a caption line below the board.
func (b *BoardView) SetPosition(fen, caption string) {
	b.fen, b.caption = fen, caption
	b.Refresh()
}

// SetFlip shows the board from Black's side when on.
func (b *BoardView) SetFlip(on bool) {
	b.flip = on
	b.Refresh()
}

func (b *BoardView) MinSize() fyne.Size { return fyne.NewSize(260, 290) }

func (b *BoardView) CreateRenderer() fyne.WidgetRenderer {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest
	txt := canvas.NewText("", color.Gray{Y: 0x80})
	txt.Alignment = fyne.TextAlignCenter
	r := &boardRenderer{b: b, img: img, caption: txt}
	r.Refresh()
	return r
}

type boardRenderer struct {
	b       *BoardView
	img     *canvas.Image
	caption *canvas.Text
}

func (r *boardRenderer) Destroy()                     {}
func (r *boardRenderer) MinSize() fyne.Size           { return r.b.MinSize() }
func (r *boardRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.img, r.caption} }

func (r *boardRenderer) Layout(size fyne.Size) {
	capH := r.caption.MinSize().Height
	side := min(size.Width, size.Height-capH)
	if side < 0 {
		side = 0
	}
	x := (size.Width - side) / 2
	r.img.Move(fyne.NewPos(x, 0))
	r.img.Resize(fyne.NewSize(side, side))
	r.caption.Move(fyne.NewPos(0, side))
	r.caption.Resize(fyne.NewSize(size.Width, capH))
}

func (r *boardRenderer) Refresh() {
	img, err := export.RenderDiagram(r.b.fen, export.DiagramOptions{SquareSize: 56, Flip: r.b.flip, Coordinates: true})
	if err != nil {
		r.caption.Text = err.Error()
	} else {
		r.img.Image = img
		r.caption.Text = r.b.caption
	}
	r.img.Refresh()
	r.caption.Refresh()
	r.Layout(r.b.Size())
}

func loadRecentDocuments(p fyne.Preferences) []string {
	raw := p.StringWithFallback(recentPrefsKey, "")
	var items []string
	if strings.TrimSpace(raw) != "" {
		var tmp []string
		if err := json.Unmarshal([]byte(raw), &tmp); err == nil {
			items = tmp
		}
	}
	// Filter out files that are gone
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func saveRecentDocuments(p fyne.Preferences, items []string) {
	if len(items) > recentMax {
		items = items[:recentMax]
	}
	b, _ := json.Marshal(items)
	p.SetString(recentPrefsKey, string(b))
}

func addRecentDocument(p fyne.Preferences, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, _ := filepath.Abs(path)
	rec := loadRecentDocuments(p)
	out := make([]string, 0, 1+len(rec))
	out = append(out, abs)
	for _, s := range rec {
		// de-dup (case-insensitive on Windows)
		if strings.EqualFold(s, abs) {
			continue
		}
		out = append(out, s)
	}
	saveRecentDocuments(p, out)
}
