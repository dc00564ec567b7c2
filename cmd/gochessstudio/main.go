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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gochessstudio/internal/config"
	"gochessstudio/internal/crash"
	applog "gochessstudio/internal/log"
	"gochessstudio/internal/storage"
	"gochessstudio/internal/telemetry"
	"gochessstudio/internal/ui"
	"gochessstudio/internal/version"
)

// errUsage makes main print the usage text and exit with status 2.
var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "Go Chess Studio")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  gochessstudio version|-v|--version                 Show version")
	fmt.Fprintln(w, "  gochessstudio new <file> [white] [black] [fen]     Create a game document")
	fmt.Fprintln(w, "  gochessstudio show <file> [--no-comments] [--no-symbols] [--no-variations] [--special]")
	fmt.Fprintln(w, "                                                     Print headers and movetext")
	fmt.Fprintln(w, "  gochessstudio move <file> <san>...                 Append moves to the main line")
	fmt.Fprintln(w, "  gochessstudio import <pgn> [<file>]                Import into the library, or the first game into a document")
	fmt.Fprintln(w, "  gochessstudio export <file> <out>                  Export as .pgn, .pdf, .png or .svg")
	fmt.Fprintln(w, "  gochessstudio batch <pgn> <dir> [web|print]        Export every game of a PGN file")
	fmt.Fprintln(w, "  gochessstudio library list|search <text>|pgn <id>|delete <id>|recover [<docs dir>]")
	fmt.Fprintln(w, "  gochessstudio engines list|add <path> [name]|remove <name>|catalog|install <name>")
	fmt.Fprintln(w, "  gochessstudio publish <file> [subject]             Publish a game to the server")
	fmt.Fprintln(w, "  gochessstudio ui [<file>]                          Launch desktop UI (build with -tags fyne)")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tcfg)

	app := &cli{cfg: cfg, token: token, out: os.Stdout, log: l}
	defer crash.RecoverCurrent(app.document)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage(os.Stdout)
		return
	}
	telemetry.Event(telemetry.EventAppStart, map[string]any{"command": args[1]})
	err = app.run(context.Background(), args[1], args[2:])
	flushTelemetry()
	switch {
	case errors.Is(err, errUsage):
		fmt.Println("Error:", err)
		usage(os.Stdout)
		os.Exit(2)
	case err != nil:
		l.Error(args[1]+" failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func flushTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	telemetry.Flush(ctx)
}

// cli carries what the commands share. dh is the document being worked on, so a
// crash can autosave it.
type cli struct {
	cfg   config.AppConfig
	token string
	out   io.Writer
	log   *slog.Logger
	dh    *storage.DocumentHandle
}

func (c *cli) document() *storage.DocumentHandle { return c.dh }

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(c.out, "Go Chess Studio")
		fmt.Fprintln(c.out, version.String())
		return nil
	case "help", "-h", "--help":
		usage(c.out)
		return nil
	case "new":
		return c.newGame(args)
	case "show":
		return c.show(args)
	case "move":
		return c.move(args)
	case "import":
		return c.importPGN(ctx, args)
	case "export":
		return c.export(args)
	case "batch":
		return c.batch(args)
	case "library":
		return c.library(ctx, args)
	case "engines":
		return c.engines(ctx, args)
	case "publish":
		return c.publish(ctx, args)
	case "ui":
		var doc string
		if len(args) > 0 {
			doc = args[0]
		}
		return ui.Run(doc)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}
