package util

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// CreateTempFile returns a path to a scratch file under t.TempDir() and
// a cleanup func that removes it.
func CreateTempFile(t *testing.T) (string, func()) {
	t.Helper()
	tempDir := t.TempDir()
	tempFile := filepath.Join(tempDir, fmt.Sprintf("pagecache-test-%d.dat", rand.Intn(100)+10))
	return tempFile, func() {
		os.Remove(tempFile)
	}
}
