package crawler

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	moduleSrcRoot  = "src/main/java"
	moduleTestRoot = "src/test/java"
	javaExt        = ".java"
)

var cjkPattern = regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`)

// Crawler scans a source tree for Java files and module source roots.
type Crawler struct {
	ignored []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: []string{".git", ".idea", "target", "build", "node_modules"},
	}
}

func (c *Crawler) skip(d fs.DirEntry) bool {
	for _, ign := range c.ignored {
		if d.Name() == ign {
			return true
		}
	}
	return false
}

// SourceRoots returns every src/main/java and src/test/java directory under
// root. A tree without module layout is its own single source root.
func (c *Crawler) SourceRoots(root string) ([]string, error) {
	var roots []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && c.skip(d) {
			return filepath.SkipDir
		}
		if IsSourceRoot(path) {
			roots = append(roots, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		roots = []string{root}
	}
	return roots, nil
}

// ScanJava walks root and streams the slash-separated relative path of every
// Java file with a valid path.
func (c *Crawler) ScanJava(root string, onFile func(rel string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && c.skip(d) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if IsJavaFile(rel) && IsValidPath(rel) {
			onFile(rel)
		}
		return nil
	})
}

// IsSourceRoot reports whether dir is a module source root.
func IsSourceRoot(dir string) bool {
	dir = filepath.ToSlash(dir)
	return strings.HasSuffix(dir, moduleSrcRoot) || strings.HasSuffix(dir, moduleTestRoot)
}

func IsJavaFile(path string) bool {
	return strings.HasSuffix(path, javaExt)
}

// IsValidPath rejects paths containing CJK ideographs.
func IsValidPath(path string) bool {
	return !cjkPattern.MatchString(path)
}

// InSourceRoot reports whether path lies under a src/main/java or
// src/test/java directory.
func InSourceRoot(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, moduleSrcRoot) || strings.Contains(path, moduleTestRoot)
}
