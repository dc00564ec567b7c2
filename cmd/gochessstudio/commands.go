/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gochessstudio/internal/backend"
	"gochessstudio/internal/config"
	"gochessstudio/internal/domain"
	"gochessstudio/internal/engines"
	"gochessstudio/internal/export"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/storage"
	"gochessstudio/internal/telemetry"
	"gochessstudio/internal/tree"
	"gochessstudio/internal/ui"
)

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", errUsage, what)
	}
	return nil
}

func (c *cli) open(path string) (*storage.DocumentHandle, *tree.Tree, error) {
	dh, err := storage.OpenDocument(path)
	if err != nil {
		return nil, nil, err
	}
	c.dh = dh
	t, err := dh.Tree()
	if err != nil {
		return nil, nil, err
	}
	return dh, t, nil
}

func (c *cli) newGame(args []string) error {
	if err := need(args, 1, "new requires <file>"); err != nil {
		return err
	}
	h := domain.DefaultHeaders()
	if len(args) > 1 {
		h.White = args[1]
	}
	if len(args) > 2 {
		h.Black = args[2]
	}
	if len(args) > 3 {
		h.FEN = args[3]
	}
	dh, err := storage.CreateDocument(args[0], domain.Game{Headers: h}, tree.NewFromFEN(h.FEN))
	if err != nil {
		return err
	}
	c.dh = dh
	c.log.Info("created game", slog.String("path", dh.Path))
	fmt.Fprintln(c.out, "Created game at", dh.Path)
	return nil
}

func pgnFlags(opts pgn.Options, flags []string) (pgn.Options, error) {
	for _, f := range flags {
		switch f {
		case "--no-comments":
			opts.Comments = false
		case "--no-symbols":
			opts.Symbols = false
		case "--no-variations":
			opts.Variations = false
		case "--special":
			opts.SpecialSymbols = true
		case "--all":
			opts = pgn.AllOptions()
		default:
			return opts, fmt.Errorf("%w: unknown flag %q", errUsage, f)
		}
	}
	return opts, nil
}

func (c *cli) show(args []string) error {
	if err := need(args, 1, "show requires <file>"); err != nil {
		return err
	}
	opts, err := pgnFlags(c.cfg.PGN, args[1:])
	if err != nil {
		return err
	}
	dh, t, err := c.open(args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, pgn.Export(dh.Doc.Game.Headers, t, opts))
	return nil
}

func (c *cli) move(args []string) error {
	if err := need(args, 2, "move requires <file> and at least one move"); err != nil {
		return err
	}
	dh, t, err := c.open(args[0])
	if err != nil {
		return err
	}
	t.GoToEnd()
	for _, san := range args[1:] {
		if _, err := t.AddMove(domain.Move{SAN: san}); err != nil {
			return fmt.Errorf("move %s: %w", san, err)
		}
	}
	dh.SetTree(t)
	if err := storage.SaveDocument(dh); err != nil {
		return err
	}
	fmt.Fprintln(c.out, pgn.RenderTop(t, c.cfg.PGN))
	return nil
}

func (c *cli) openLibrary(ctx context.Context) (*storage.Library, error) {
	path, err := c.cfg.LibraryPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	lib, rebuilt, err := storage.RecoverLibrary(ctx, path, "")
	if err != nil {
		return nil, err
	}
	if rebuilt {
		c.log.Warn("library was damaged and has been recreated", slog.String("path", path))
	}
	return lib, nil
}

func (c *cli) importPGN(ctx context.Context, args []string) error {
	if err := need(args, 1, "import requires <pgn>"); err != nil {
		return err
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(args) > 1 {
		g, err := pgn.ParseGame(string(b))
		if err != nil {
			return err
		}
		dh, err := storage.CreateDocument(args[1], domain.Game{Headers: g.Headers}, g.Tree)
		if err != nil {
			return err
		}
		c.dh = dh
		fmt.Fprintln(c.out, "Imported game into", dh.Path)
		telemetry.Event(telemetry.EventGameImported, map[string]any{"target": "document"})
		return nil
	}

	games, err := pgn.ParseAll(string(b))
	if err != nil {
		return err
	}
	lib, err := c.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	for _, g := range games {
		id, err := lib.SaveGame(ctx, domain.Game{Headers: g.Headers}, g.Tree)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "#%d  %s - %s  %s\n", id, g.Headers.White, g.Headers.Black, g.Headers.Result)
	}
	telemetry.Event(telemetry.EventGameImported, map[string]any{"target": "library", "games": len(games)})
	return nil
}

func (c *cli) export(args []string) error {
	if err := need(args, 2, "export requires <file> and <out>"); err != nil {
		return err
	}
	ed := ui.NewEditor(ui.EditorOptions{PGN: c.cfg.PGN})
	if err := ed.OpenGame(args[0]); err != nil {
		return err
	}
	c.dh = ed.Document()
	// diagrams show the final position
	if _, err := ed.Navigate("end"); err != nil {
		return err
	}
	if err := ed.ExportTo(args[1]); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Exported", args[1])
	return nil
}

func (c *cli) batch(args []string) error {
	if err := need(args, 2, "batch requires <pgn> and <dir>"); err != nil {
		return err
	}
	preset := export.PresetWeb
	if len(args) > 2 {
		preset = export.PresetName(args[2])
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	games, err := pgn.ParseAll(string(b))
	if err != nil {
		return err
	}
	files, err := export.BatchExport(games, export.BatchOptions{Preset: preset, OutDir: args[1]})
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(c.out, f)
	}
	return nil
}

func (c *cli) library(ctx context.Context, args []string) error {
	if err := need(args, 1, "library requires a subcommand"); err != nil {
		return err
	}
	lib, err := c.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()

	printGames := func(list []storage.GameSummary) {
		if len(list) == 0 {
			fmt.Fprintln(c.out, "No games.")
		}
		for _, g := range list {
			fmt.Fprintf(c.out, "#%d  %s - %s  %s  %s  (%d plies)\n", g.ID, g.White, g.Black, g.Result, g.Date, g.PlyCount)
		}
	}
	switch args[0] {
	case "list":
		list, err := lib.ListGames(ctx, 100, 0)
		if err != nil {
			return err
		}
		printGames(list)
	case "search":
		if err := need(args, 2, "library search requires <text>"); err != nil {
			return err
		}
		list, err := lib.SearchGames(ctx, storage.GameQuery{Text: strings.Join(args[1:], " "), Limit: 100})
		if err != nil {
			return err
		}
		printGames(list)
	case "pgn":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		text, err := lib.GamePGN(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprint(c.out, text)
	case "delete":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		if err := lib.DeleteGame(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Deleted game #%d\n", id)
	case "recover":
		if len(args) < 2 {
			return lib.Check(ctx)
		}
		n, err := lib.ImportDocuments(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Imported %d documents\n", n)
	default:
		return fmt.Errorf("%w: unknown library subcommand %q", errUsage, args[0])
	}
	return nil
}

func idArg(args []string) (int64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: library %s requires <id>", errUsage, args[0])
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[1], "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad game id %q", errUsage, args[1])
	}
	return id, nil
}

func (c *cli) engines(ctx context.Context, args []string) error {
	if err := need(args, 1, "engines requires a subcommand"); err != nil {
		return err
	}
	ed := ui.NewEditor(ui.OptionsFromConfig(c.cfg, c.token))
	switch args[0] {
	case "list":
		list := ed.Engines()
		if len(list) == 0 {
			fmt.Fprintln(c.out, "No engines installed.")
		}
		for _, e := range list {
			fmt.Fprintf(c.out, "%s %s  %s\n", e.Name, e.Version, e.Path)
		}
	case "add":
		if err := need(args, 2, "engines add requires <path>"); err != nil {
			return err
		}
		f := ui.EngineForm{Path: args[1]}
		if len(args) > 2 {
			f.Name = args[2]
		}
		e, err := ed.AddEngine(f)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Added engine", e.Name)
	case "remove":
		if err := need(args, 2, "engines remove requires <name>"); err != nil {
			return err
		}
		reg, err := c.registry()
		if err != nil {
			return err
		}
		if err := reg.Remove(args[1]); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Removed engine", args[1])
	case "catalog":
		list, err := ed.DefaultEngines(ctx)
		if err != nil {
			return err
		}
		for _, e := range list {
			mark := " "
			if e.Installed {
				mark = "*"
			}
			fmt.Fprintf(c.out, "%s %s %s  %s\n", mark, e.Name, e.Version, e.DownloadURL)
		}
	case "install":
		if err := need(args, 2, "engines install requires <name>"); err != nil {
			return err
		}
		return c.install(ctx, ed, args[1])
	default:
		return fmt.Errorf("%w: unknown engines subcommand %q", errUsage, args[0])
	}
	return nil
}

func (c *cli) registry() (*engines.Registry, error) {
	p, err := c.cfg.RegistryPath()
	if err != nil {
		return nil, err
	}
	return engines.LoadRegistry(p)
}

func (c *cli) install(ctx context.Context, ed *ui.Editor, name string) error {
	list, err := ed.DefaultEngines(ctx)
	if err != nil {
		return err
	}
	var entry *engines.Entry
	for i := range list {
		if strings.EqualFold(list[i].Name, name) {
			entry = &list[i]
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("no catalog engine named %q for %s", name, engines.CurrentOS())
	}
	done := make(chan engines.Progress, 1)
	if _, err := ed.StartDownload(ctx, entry.Engine, func(p engines.Progress) {
		fmt.Fprintf(c.out, "\r%s: %3.0f%%", entry.Name, p.Percent)
		if p.Done {
			fmt.Fprintln(c.out)
			done <- p
		}
	}); err != nil {
		return err
	}
	p := <-done
	if p.Err != nil {
		return p.Err
	}
	fmt.Fprintln(c.out, "Installed", entry.Name)
	return nil
}

func (c *cli) publish(ctx context.Context, args []string) error {
	if err := need(args, 1, "publish requires <file>"); err != nil {
		return err
	}
	dh, t, err := c.open(args[0])
	if err != nil {
		return err
	}
	client := backend.NewClient(c.cfg.Backend.BaseURL, c.token)
	if client.Token == "" {
		subject := os.Getenv("USER")
		if len(args) > 1 {
			subject = args[1]
		}
		tok, exp, err := client.Login(ctx, subject, 24*time.Hour)
		if err != nil {
			return err
		}
		if err := config.Save(c.cfg, tok); err != nil {
			c.log.Warn("token not stored", slog.Any("err", err))
		}
		c.log.Info("logged in", slog.String("subject", subject), slog.Time("expires", exp))
	}
	sum, err := client.PublishGame(ctx, pgn.Export(dh.Doc.Game.Headers, t, pgn.AllOptions()))
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventGamePublished, nil)
	fmt.Fprintf(c.out, "Published game #%d (%s - %s)\n", sum.ID, sum.White, sum.Black)
	return nil
}
