package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	oldVersion, oldSHA := Version, GitSHA
	t.Cleanup(func() { Version, GitSHA = oldVersion, oldSHA })

	Version, GitSHA = "1.2.0", "abc123"
	got := String()
	for _, want := range []string{"cruncher 1.2.0", "commit abc123"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, want it to contain %q", got, want)
		}
	}
}
