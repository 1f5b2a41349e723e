package hasher

import (
	"testing"

	"github.com/spf13/afero"
)

func TestCalculateHash(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/test.txt", []byte("test content for hashing"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	hash, err := CalculateHash(fs, "/data/test.txt")
	if err != nil {
		t.Fatalf("CalculateHash() error = %v", err)
	}
	if hash == 0 {
		t.Error("Expected non-zero hash")
	}

	hash2, err := CalculateHash(fs, "/data/test.txt")
	if err != nil {
		t.Fatalf("CalculateHash() second call error = %v", err)
	}
	if hash != hash2 {
		t.Error("Hash should be consistent for same file")
	}
}

func TestCalculateHash_DifferentContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/file1.txt", []byte("content1"), 0644)
	_ = afero.WriteFile(fs, "/file2.txt", []byte("content2"), 0644)

	hash1, err := CalculateHash(fs, "/file1.txt")
	if err != nil {
		t.Fatalf("CalculateHash() error = %v", err)
	}
	hash2, err := CalculateHash(fs, "/file2.txt")
	if err != nil {
		t.Fatalf("CalculateHash() error = %v", err)
	}
	if hash1 == hash2 {
		t.Error("Different content should produce different hashes")
	}
}

func TestCalculateHash_NonExistentFile(t *testing.T) {
	if _, err := CalculateHash(afero.NewMemMapFs(), "/non/existent/file.txt"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(0xabc); got != "0000000000000abc" {
		t.Errorf("Format() = %s", got)
	}
}
