//go:build !fyne

package ui

import (
	"strings"
	"testing"
)

func TestRunWithoutFyneExplainsRebuild(t *testing.T) {
	err := Run("club.gcs.json")
	if err == nil {
		t.Fatal("headless build must refuse to start the desktop UI")
	}
	for _, want := range []string{"UI not built", "-tags fyne", "./cmd/gochessstudio ui"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q lacks %q", err, want)
		}
	}
}
