package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10
	maxFuzzInput = 256 << 10
)

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	f.Add([]byte{})
	f.Add([]byte("goroutine 1 [running]:\nmain.main()\n\t/src/main.go:1 +0x1\n"))
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata", "tracebacks")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".txt" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

// truncateForLog truncates input for logging purposes
func truncateForLog(input []byte, maxLen int) []byte {
	if len(input) <= maxLen {
		return input
	}
	return append(input[:maxLen:maxLen], []byte("...")...)
}
