package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindRepositoryRoot walks up from start until it finds a directory that is
// a git work tree (holds .git) or a bare repository (holds HEAD and
// objects). Returns an empty string if none is found.
func FindRepositoryRoot(start string) (string, error) {
	currentDir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		found, err := isRepository(currentDir)
		if err != nil {
			return "", err
		}
		if found {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)

		// Reached the filesystem root.
		if parentDir == currentDir {
			return "", nil
		}
		currentDir = parentDir
	}
}

func isRepository(dir string) (bool, error) {
	if exists, err := pathExists(filepath.Join(dir, ".git")); err != nil || exists {
		return exists, err
	}
	head, err := pathExists(filepath.Join(dir, "HEAD"))
	if err != nil || !head {
		return false, err
	}
	return pathExists(filepath.Join(dir, "objects"))
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	// Return any error that's not "file not found" (like permission issues)
	return false, fmt.Errorf("error checking %s: %w", path, err)
}
