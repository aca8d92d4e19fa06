// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads the engine's API credentials from a directory of
// plain-text files, one file per key. The filename is the key name and the
// file contents (trimmed) are the value.
//
// The engine recognizes exactly two keys: KeyEmbeddings authenticates
// against the embedding provider and KeyTracker against the project
// tracker. Files with any other name are skipped with a warning so a
// typo'd filename surfaces instead of silently yielding an empty key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key names recognized in the secrets directory.
const (
	KeyEmbeddings = "embeddings-api-key"
	KeyTracker    = "tracker-api-key"
)

var knownKeys = map[string]bool{
	KeyEmbeddings: true,
	KeyTracker:    true,
}

// Load reads the recognized key files in dir and returns a map of key name
// to trimmed contents. A missing directory or missing key files are not
// errors; Load returns an empty map. Unreadable or unrecognized files
// produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !knownKeys[name] {
			fmt.Fprintf(os.Stderr, "warning: unrecognized secret %s (expected %s or %s)\n",
				name, KeyEmbeddings, KeyTracker)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
