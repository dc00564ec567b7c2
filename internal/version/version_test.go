package version

import (
	"strings"
	"testing"
)

func TestStringIncludesCommit(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "1.4.0", "abc1234"
	if got := String(); got != "1.4.0 (abc1234)" {
		t.Fatalf("String() = %q", got)
	}
	Commit = ""
	if got := String(); !strings.HasPrefix(got, "1.4.0") {
		t.Fatalf("String() without commit = %q", got)
	}
}
