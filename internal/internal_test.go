package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPolicy(t *testing.T) {
	testCases := []struct {
		stage     Stage
		threshold string
		dirs      string
		name      string
		tracked   bool
	}{
		{Downloads, "download_stale_after", "download_directories", "downloads", false},
		{Archive, "archive_stale_after", "archive_directories", "archive", true},
		{Purge, "purge_stale_after", "purge_directories", "purge", true},
	}

	for _, tc := range testCases {
		threshold, dirs := Policy(tc.stage)
		if threshold != tc.threshold || dirs != tc.dirs {
			t.Errorf("Policy(%s) = (%s, %s), want (%s, %s)", tc.stage, threshold, dirs, tc.threshold, tc.dirs)
		}
		if tc.stage.String() != tc.name {
			t.Errorf("String() = %s, want %s", tc.stage.String(), tc.name)
		}
		if tc.stage.Tracked() != tc.tracked {
			t.Errorf("%s.Tracked() = %v, want %v", tc.stage, tc.stage.Tracked(), tc.tracked)
		}
		if parsed, ok := ParseStage(tc.name); !ok || parsed != tc.stage {
			t.Errorf("ParseStage(%s) = %v, %v", tc.name, parsed, ok)
		}
	}

	if _, ok := ParseStage("deleted"); ok {
		t.Error("ParseStage() should reject unknown names")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandPath("~/Downloads")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if got != filepath.Join(home, "Downloads") {
		t.Errorf("ExpandPath(~/Downloads) = %s", got)
	}

	got, _ = ExpandPath("/var/tmp/../tmp")
	if got != "/var/tmp" {
		t.Errorf("ExpandPath() = %s, want /var/tmp", got)
	}

	got, _ = ExpandPath("")
	if got != "" {
		t.Errorf("ExpandPath(\"\") = %s", got)
	}
}
