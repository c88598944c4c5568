package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// Extensions names the suffixes a build reads and writes.
type Extensions struct {
	Source  string
	Listing string
	Output  string
	Symbols string
}

// DefaultExtensions are the conventional Along/cmn file suffixes.
var DefaultExtensions = Extensions{
	Source:  ".cmn",
	Listing: ".ccmn",
	Output:  ".asm",
	Symbols: ".symbols.yaml",
}

// Artifacts holds the absolute paths of every file one build touches.
type Artifacts struct {
	Base    string // file name without directory or extension
	Source  string
	Listing string
	Output  string
	Symbols string
}

// ResolveArtifacts derives the build paths for base. base may carry the
// source extension or not; outputs go next to the source unless outDir is set.
func ResolveArtifacts(base, outDir string, ext Extensions) (Artifacts, error) {
	if strings.TrimSpace(base) == "" {
		return Artifacts{}, fmt.Errorf("empty base name")
	}
	base = strings.TrimSuffix(base, ext.Source)

	srcPath, srcDir, err := GetPathInfo(base + ext.Source)
	if err != nil {
		return Artifacts{}, fmt.Errorf("resolve %s: %w", base, err)
	}

	dir := srcDir
	if outDir != "" {
		if dir, err = filepath.Abs(outDir); err != nil {
			return Artifacts{}, fmt.Errorf("resolve out dir %s: %w", outDir, err)
		}
	}

	name := filepath.Base(base)
	return Artifacts{
		Base:    name,
		Source:  srcPath,
		Listing: filepath.Join(dir, name+ext.Listing),
		Output:  filepath.Join(dir, name+ext.Output),
		Symbols: filepath.Join(dir, name+ext.Symbols),
	}, nil
}

// IsSource reports whether path names a source file.
func IsSource(path string, ext Extensions) bool {
	return filepath.Ext(path) == ext.Source && !strings.HasPrefix(filepath.Base(path), ".")
}
