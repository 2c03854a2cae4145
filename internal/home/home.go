package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the leapocr home directory.
	DefaultDirName = ".leapocr"

	// ResultsDirName is the subdirectory for saved job results.
	ResultsDirName = "results"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the leapocr home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.leapocr).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ResultsPath returns the path to the saved results directory.
func (d *Dir) ResultsPath() string {
	return filepath.Join(d.path, ResultsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create results directory (this also creates the parent)
	if err := os.MkdirAll(d.ResultsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ResultPath returns where the result of a job is saved, using ext
// ("json" or "yaml") as the file extension.
func (d *Dir) ResultPath(jobID, ext string) string {
	return filepath.Join(d.ResultsPath(), safeName(jobID)+"."+ext)
}

// SaveResult writes an encoded job result under the results directory and
// returns the file path.
func (d *Dir) SaveResult(jobID, ext string, data []byte) (string, error) {
	if err := d.EnsureExists(); err != nil {
		return "", err
	}
	path := d.ResultPath(jobID, ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write result %s: %w", path, err)
	}
	return path, nil
}

// safeName keeps job IDs from escaping the results directory.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimLeft(id, "."))
}
