// Package dotenv loads KEY=VALUE files into the process environment for the
// command-line tools.
package dotenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadFile loads a dotenv-style file into the process environment. Existing
// environment variables are preserved and a missing file is not an error.
func LoadFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// LoadFiles loads each existing file in order. Earlier files win over later
// ones, and the process environment wins over both.
func LoadFiles(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}
