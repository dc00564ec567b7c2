package pgn

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/tree"
)

func TestRoundTripAllOptions(t *testing.T) {
	tr := nested(t)
	if err := tr.AddComment(tr.Root(), "Prelude"); err != nil {
		t.Fatal(err)
	}
	main := tr.Children(tr.Root())
	_ = tr.AddComment(main[0], "king's pawn")
	_, _ = tr.ToggleSymbol(main[0], 3)
	_, _ = tr.ToggleSymbol(main[0], 14)
	_ = tr.AddComment(main[1], "queen's pawn")
	_ = tr.AddComment(main[1], "second thought")

	text := RenderTop(tr, AllOptions())
	parsed, _, err := Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	if again := RenderTop(parsed, AllOptions()); again != text {
		t.Fatalf("round trip changed output:\n got %q\nwant %q", again, text)
	}
	want, got := tr.Document().Root, parsed.Document().Root
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parsed tree differs\n got %+v\nwant %+v", got, want)
	}
}

func TestRoundTripSubtree(t *testing.T) {
	tr := tree.New()
	refs := add(t, tr, "e4", "e5", "Nf3", "Nc6")
	_ = tr.GoToNode(refs[2])
	add(t, tr, "d6")
	text, err := Render(tr, refs[0], AllOptions())
	if err != nil {
		t.Fatal(err)
	}
	parsed, _, err := Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	if again := RenderTop(parsed, AllOptions()); again != text {
		t.Fatalf("got %q want %q", again, text)
	}
}

func TestParseExternalMovetext(t *testing.T) {
	text := `1.e4 e5 2.Nf3 {Main} ( 2.f4 exf4 $6 ) 2...Nc6!? ; line comment
3.Bb5 a6 1-0`
	tr, res, err := Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	if res != domain.ResultWhite {
		t.Fatalf("result = %q", res)
	}
	want := "1. e4 e5 2. Nf3 {Main} (2. f4 exf4?!) 2... Nc6!? {line comment} 3. Bb5 a6"
	if got := RenderTop(tr, DefaultOptions()); got != want {
		t.Fatalf("render = %q\nwant     %q", got, want)
	}
	m, _ := tr.Move(tr.Cursor())
	if m.SAN != "a6" {
		t.Fatalf("cursor on %q, want a6", m.SAN)
	}
}

func TestParseKeepsRepeatedGlyphOnce(t *testing.T) {
	tr, _, err := Parse("1. e4! $1")
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.Symbols(tr.Cursor()); !reflect.DeepEqual(got, []domain.NAG{1}) {
		t.Fatalf("symbols = %v", got)
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"1. e4 (1. d4",
		"1. e4 )",
		"1. e4 {never closed",
		"1. e4 $999",
		"(1. e4) 1. d4",
		"$1 1. e4",
		"1. e4 ()",
		"1. e4!!!",
	} {
		_, _, err := Parse(text)
		if err == nil {
			t.Fatalf("Parse(%q) succeeded", text)
		}
		if !errors.Is(err, ErrSyntax) {
			t.Fatalf("Parse(%q): want ErrSyntax, got %v", text, err)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, _, err := Parse("1. e4 e5\n2. Nf3 )")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ParseError, got %v", err)
	}
	if pe.Line != 2 || pe.Column != 8 {
		t.Fatalf("position = %d:%d, want 2:8", pe.Line, pe.Column)
	}
}

func TestExportAndParseGame(t *testing.T) {
	tr := tree.New()
	refs := add(t, tr, "e4", "e5")
	_ = tr.AddComment(refs[1], "a comment with several words that must stay on one line after wrapping")
	h := domain.DefaultHeaders()
	h.White, h.Black = `Tal, "Mikhail"`, "Botvinnik"
	h.Result = domain.ResultWhite
	elo := 2700
	h.WhiteElo = &elo

	out := Export(h, tr, DefaultOptions())
	for _, want := range []string{
		`[White "Tal, \"Mikhail\""]`,
		`[Result "1-0"]`,
		`[WhiteElo "2700"]`,
		`[PlyCount "2"]`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export lacks %s:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "1-0") {
		t.Fatalf("export must end with the result:\n%s", out)
	}

	g, err := ParseGame(out)
	if err != nil {
		t.Fatalf("ParseGame: %v", err)
	}
	if g.Headers.White != h.White || g.Headers.Result != domain.ResultWhite || g.Headers.WhiteElo == nil || *g.Headers.WhiteElo != 2700 {
		t.Fatalf("headers = %+v", g.Headers)
	}
	if got, want := RenderTop(g.Tree, DefaultOptions()), RenderTop(tr, DefaultOptions()); got != want {
		t.Fatalf("movetext = %q, want %q", got, want)
	}
}

func TestExportWrapsAtLineWidth(t *testing.T) {
	tr := tree.New()
	for i := 0; i < 40; i++ {
		add(t, tr, "Nf3", "Nf6", "Ng1", "Ng8")
	}
	out := Export(domain.DefaultHeaders(), tr, DefaultOptions())
	body := out[strings.Index(out, "\n\n")+2:]
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if n := len([]rune(line)); n > LineWidth {
			t.Fatalf("line of %d runes: %q", n, line)
		}
	}
}

func TestParseGameWithFEN(t *testing.T) {
	text := `[Event "Study"]
[SetUp "1"]
[FEN "4k3/8/8/8/8/8/4P3/4K3 b - - 0 12"]

12... Kd7 13. e4 *`
	g, err := ParseGame(text)
	if err != nil {
		t.Fatal(err)
	}
	if got := RenderTop(g.Tree, DefaultOptions()); got != "12... Kd7 13. e4" {
		t.Fatalf("render = %q", got)
	}
	if !strings.Contains(Export(g.Headers, g.Tree, DefaultOptions()), `[FEN "4k3/8/8/8/8/8/4P3/4K3 b - - 0 12"]`) {
		t.Fatalf("export dropped the FEN tag")
	}
}

func TestSplitGames(t *testing.T) {
	text := `[Event "A"]

1. e4 e5 1-0

[Event "B"]

1. d4 d5 0-1
`
	games, err := ParseAll(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 || games[0].Headers.Event != "A" || games[1].Headers.Result != domain.ResultBlack {
		t.Fatalf("games = %+v", games)
	}
}
