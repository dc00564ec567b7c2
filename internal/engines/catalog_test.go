package engines

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gochessstudio/internal/domain"
)

type fakeSource struct {
	byOS map[string][]domain.Engine
	err  error
}

func (f fakeSource) Engines(_ context.Context, os string) ([]domain.Engine, error) {
	return f.byOS[os], f.err
}

func TestCatalogMarksInstalled(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), RegistryFileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(domain.Engine{Name: "Stockfish", Path: "/opt/sf"}); err != nil {
		t.Fatal(err)
	}
	src := fakeSource{byOS: map[string][]domain.Engine{
		"linux": {{Name: "Stockfish", Path: "sf/sf"}, {Name: "Lc0", Path: "lc0/lc0"}},
	}}
	list, err := NewCatalog(src, reg).Defaults(context.Background(), "linux")
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if len(list) != 2 || !list[0].Installed || list[1].Installed {
		t.Fatalf("unexpected entries: %+v", list)
	}
}

func TestCatalogPropagatesErrors(t *testing.T) {
	boom := errors.New("offline")
	if _, err := NewCatalog(fakeSource{err: boom}, nil).Defaults(context.Background(), "linux"); !errors.Is(err, boom) {
		t.Fatalf("want wrapped source error, got %v", err)
	}
}
