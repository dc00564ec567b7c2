/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/tree"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := OpenLibrary(filepath.Join(t.TempDir(), LibraryFileName))
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func parseTree(t *testing.T, movetext string) *tree.Tree {
	t.Helper()
	tr, _, err := pgn.Parse(movetext)
	if err != nil {
		t.Fatalf("Parse(%q): %v", movetext, err)
	}
	return tr
}

func game(white, black, eco string, result domain.Result) domain.Game {
	h := domain.DefaultHeaders()
	h.Event = "Club Championship"
	h.White, h.Black, h.ECO, h.Result = white, black, eco, result
	return domain.Game{Headers: h}
}

func TestSaveAndGetGame(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	elo := 2100
	g := game("Smith, Anna", "Jones, Bob", "C50", domain.ResultWhite)
	g.Headers.WhiteElo = &elo
	tr := parseTree(t, "1. e4 e5 2. Nf3 {developing} (2. f4 exf4?!) 2... Nc6! 1-0")

	id, err := lib.SaveGame(ctx, g, tr)
	if err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	got, gotTree, err := lib.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.ID != id || got.Headers.White != "Smith, Anna" || got.Headers.Black != "Jones, Bob" {
		t.Fatalf("headers mismatch: %+v", got)
	}
	if got.Headers.WhiteElo == nil || *got.Headers.WhiteElo != 2100 || got.Headers.BlackElo != nil {
		t.Fatalf("elo mismatch: white=%v black=%v", got.Headers.WhiteElo, got.Headers.BlackElo)
	}
	if got.Headers.PlyCount != 4 || got.Headers.Result != domain.ResultWhite {
		t.Fatalf("plyCount=%d result=%s", got.Headers.PlyCount, got.Headers.Result)
	}
	want := pgn.RenderTop(tr, pgn.AllOptions())
	if have := pgn.RenderTop(gotTree, pgn.AllOptions()); have != want {
		t.Fatalf("tree mismatch:\nhave %s\nwant %s", have, want)
	}
	text, err := lib.GamePGN(ctx, id)
	if err != nil {
		t.Fatalf("GamePGN: %v", err)
	}
	if !strings.Contains(text, `[White "Smith, Anna"]`) || !strings.HasSuffix(text, "1-0\n") {
		t.Fatalf("stored pgn unexpected:\n%s", text)
	}
}

func TestSaveGameFromPosition(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	fen := "4k3/8/8/8/8/8/4P3/4K3 b - - 0 12"
	tr := tree.NewFromFEN(fen)
	if _, err := tr.AddMove(domain.Move{SAN: "Kd7"}); err != nil {
		t.Fatal(err)
	}
	id, err := lib.SaveGame(ctx, game("A", "B", "", domain.ResultUnknown), tr)
	if err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	got, gotTree, err := lib.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.Headers.FEN != fen {
		t.Fatalf("FEN = %q", got.Headers.FEN)
	}
	if s := pgn.RenderTop(gotTree, pgn.DefaultOptions()); s != "12... Kd7" {
		t.Fatalf("render = %q", s)
	}
}

func TestUpdateGame(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	g := game("A", "B", "", domain.ResultUnknown)
	id, err := lib.SaveGame(ctx, g, parseTree(t, "1. d4"))
	if err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	g.ID = id
	g.Headers.Result = domain.ResultDraw
	if again, err := lib.SaveGame(ctx, g, parseTree(t, "1. d4 d5")); err != nil || again != id {
		t.Fatalf("update: id=%d err=%v", again, err)
	}
	got, _, err := lib.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.Headers.Result != domain.ResultDraw || got.Headers.PlyCount != 2 {
		t.Fatalf("update not applied: %+v", got.Headers)
	}
	g.ID = id + 100
	if _, err := lib.SaveGame(ctx, g, tree.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDeleteAndMissingGame(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	id, err := lib.SaveGame(ctx, game("A", "B", "", domain.ResultUnknown), tree.New())
	if err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	if err := lib.DeleteGame(ctx, id); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if err := lib.DeleteGame(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
	if _, _, err := lib.GetGame(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetGame: want ErrNotFound, got %v", err)
	}
}

func TestSearchGames(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	seed := []struct {
		g    domain.Game
		text string
	}{
		{game("Smith, Anna", "Jones, Bob", "B22", domain.ResultWhite), "1. e4 c5 2. c3 {Alapin}"},
		{game("Jones, Bob", "Miller, Cid", "D35", domain.ResultDraw), "1. d4 d5 2. c4 e6 {a brilliant sacrifice follows}"},
		{game("Miller, Cid", "Smith, Anna", "B90", domain.ResultBlack), "1. e4 c5"},
	}
	ids := make([]int64, len(seed))
	for i, s := range seed {
		id, err := lib.SaveGame(ctx, s.g, parseTree(t, s.text))
		if err != nil {
			t.Fatalf("SaveGame %d: %v", i, err)
		}
		ids[i] = id
	}

	cases := map[string]struct {
		q    GameQuery
		want []int64
	}{
		"all newest first": {GameQuery{}, []int64{ids[2], ids[1], ids[0]}},
		"player":           {GameQuery{Player: "smith"}, []int64{ids[2], ids[0]}},
		"eco prefix":       {GameQuery{ECO: "b"}, []int64{ids[2], ids[0]}},
		"result":           {GameQuery{Result: domain.ResultDraw}, []int64{ids[1]}},
		"comment text":     {GameQuery{Text: "sacrifice"}, []int64{ids[1]}},
		"text and player":  {GameQuery{Text: "Alapin", Player: "jones"}, []int64{ids[0]}},
		"paged":            {GameQuery{Limit: 1, Offset: 1}, []int64{ids[1]}},
		"no match":         {GameQuery{Player: "nobody"}, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := lib.SearchGames(ctx, tc.q)
			if err != nil {
				t.Fatalf("SearchGames: %v", err)
			}
			var got []int64
			for _, r := range res {
				got = append(got, r.ID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v want %v", got, tc.want)
				}
			}
		})
	}

	list, err := lib.ListGames(ctx, 10, 0)
	if err != nil || len(list) != 3 {
		t.Fatalf("ListGames: %d err %v", len(list), err)
	}
	if list[2].White != "Smith, Anna" || list[2].PlyCount != 3 || list[2].Result != domain.ResultWhite {
		t.Fatalf("summary mismatch: %+v", list[2])
	}
}

func TestPlayersAreShared(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	elo := 1800
	g := game("Smith, Anna", "?", "", domain.ResultUnknown)
	g.Headers.WhiteElo = &elo
	if _, err := lib.SaveGame(ctx, g, tree.New()); err != nil {
		t.Fatal(err)
	}
	// a later game without a rating keeps the known one
	if _, err := lib.SaveGame(ctx, game("Smith, Anna", "Jones, Bob", "", domain.ResultUnknown), tree.New()); err != nil {
		t.Fatal(err)
	}
	players, err := lib.Players(ctx)
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("expected 2 players (unknown names are not stored), got %+v", players)
	}
	if players[1].Name != "Smith, Anna" || players[1].Elo == nil || *players[1].Elo != 1800 {
		t.Fatalf("player mismatch: %+v", players[1])
	}
}

func TestRecoverLibraryRebuildsFromDocuments(t *testing.T) {
	dir := t.TempDir()
	tr := parseTree(t, "1. e4 e5")
	if _, err := CreateDocument(filepath.Join(dir, "games", "first"), game("A", "B", "", domain.ResultUnknown), tr); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	path := filepath.Join(dir, LibraryFileName)
	if err := os.WriteFile(path, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	lib, rebuilt, err := RecoverLibrary(context.Background(), path, filepath.Join(dir, "games"))
	if err != nil {
		t.Fatalf("RecoverLibrary: %v", err)
	}
	defer lib.Close()
	if !rebuilt {
		t.Fatalf("expected a rebuild")
	}
	list, err := lib.ListGames(context.Background(), 0, 0)
	if err != nil || len(list) != 1 || list[0].PlyCount != 2 {
		t.Fatalf("rebuilt library: %+v err %v", list, err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil || len(ents) == 0 {
		t.Fatalf("expected a backup of the corrupt file, err %v", err)
	}

	again, rebuilt, err := RecoverLibrary(context.Background(), filepath.Join(dir, "healthy.sqlite"), "")
	if err != nil || rebuilt {
		t.Fatalf("healthy library: rebuilt=%v err=%v", rebuilt, err)
	}
	_ = again.Close()
}
