package io

import (
	"fmt"
	"os"
	"path/filepath"
)

// MakeDirForFile creates the directory the given file is supposed to live
// in. The creator name is only used for error messages.
func MakeDirForFile(filePath string, creator string) error {
	dir := filepath.Dir(filePath)
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("could not create dir for %s: %w", creator, err)
	}
	return nil
}
