package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanupUnfinishedTemp removes leftover .tmp artifacts below outputDir.
// The assembler always builds next to the final path and renames on
// success, so anything still carrying the suffix is an aborted issue.
func CleanupUnfinishedTemp(outputDir string) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(outputDir, name)

		if strings.HasSuffix(name, ".tmp") {
			if err := os.RemoveAll(full); err != nil {
				fmt.Printf("Error cleaning up %s: %v\n", full, err)
			} else {
				fmt.Printf("Removed %s\n", full)
			}
			continue
		}

		if e.IsDir() {
			CleanupUnfinishedTemp(full)
		}
	}
}

func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}
