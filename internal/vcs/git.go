package vcs

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"untangle/internal/model"
)

const devNull = "/dev/null"

// Repository reads revisions of a local git repository.
type Repository struct {
	dir    string
	logger *slog.Logger
}

// Open returns the repository rooted at dir.
func Open(dir string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return nil, fmt.Errorf(".git not found under %s: %w", dir, err)
	}
	return &Repository{dir: dir, logger: logger}, nil
}

func (r *Repository) Dir() string { return r.dir }

func (r *Repository) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.dir, "-c", "core.quotepath=false"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: git %s: %v: %s", ErrGit, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Diff compares hash1 with hash2. The snapshots live in a fresh directory
// under tmp that Diff.Cleanup removes.
func (r *Repository) Diff(ctx context.Context, hash1, hash2, tmp string, opts Options) (*model.Diff, error) {
	r.logger.Info("comparing revisions", "before", hash1, "after", hash2)
	temp, err := os.MkdirTemp(tmp, "untangle-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	d := model.NewDiff(model.NewSnapshot(filepath.Join(temp, beforeDir)), model.NewSnapshot(filepath.Join(temp, afterDir)), temp)

	if err := r.load(ctx, d, hash1, hash2, opts); err != nil {
		if cerr := d.Cleanup(); cerr != nil {
			r.logger.Warn("failed to clean up", "dir", temp, "err", cerr)
		}
		return nil, err
	}
	return d, nil
}

func (r *Repository) load(ctx context.Context, d *model.Diff, hash1, hash2 string, opts Options) error {
	if !opts.OnlyDiff {
		if err := r.archive(ctx, hash1, d.Prev().Root()); err != nil {
			return err
		}
		if err := r.archive(ctx, hash2, d.Next().Root()); err != nil {
			return err
		}
	}

	out, err := r.git(ctx, "diff", "-U0", "--histogram", "-M", "--ignore-space-change",
		"--no-color", "--no-ext-diff", hash1, hash2, "--", "*.java")
	if err != nil {
		return err
	}
	fds, err := diff.NewMultiFileDiffReader(bytes.NewReader(out)).ReadAllFiles()
	if err != nil {
		return fmt.Errorf("failed to parse diff of %s..%s: %w", hash1, hash2, err)
	}

	for _, fd := range fds {
		edit := fileEdit(fd)
		if !wanted(edit.OldPath) && !wanted(edit.NewPath) {
			continue
		}
		if touches(edit.Hunks, true) {
			if edit.OldContent, err = r.show(ctx, hash1, edit.OldPath); err != nil {
				return err
			}
		}
		if touches(edit.Hunks, false) {
			if edit.NewContent, err = r.show(ctx, hash2, edit.NewPath); err != nil {
				return err
			}
		}
		if err := d.AddFile(edit); err != nil {
			return err
		}
	}

	if opts.OnlyDiff {
		return d.Materialize()
	}
	return nil
}

// fileEdit converts one parsed file diff. Paths lose their a/ and b/
// prefixes; the missing side of an added or deleted file is empty.
func fileEdit(fd *diff.FileDiff) model.FileEdit {
	edit := model.FileEdit{
		OldPath: stripPrefix(fd.OrigName, "a/"),
		NewPath: stripPrefix(fd.NewName, "b/"),
		Kind:    model.ChangeModify,
	}
	switch {
	case edit.OldPath == "":
		edit.Kind = model.ChangeAdd
	case edit.NewPath == "":
		edit.Kind = model.ChangeDelete
	case edit.OldPath != edit.NewPath:
		edit.Kind = model.ChangeRename
	}
	for _, h := range fd.Hunks {
		edit.Hunks = append(edit.Hunks, model.Hunk{
			OldStart: int(h.OrigStartLine),
			OldLines: int(h.OrigLines),
			NewStart: int(h.NewStartLine),
			NewLines: int(h.NewLines),
		})
	}
	return edit
}

func stripPrefix(name, prefix string) string {
	if name == devNull {
		return ""
	}
	return strings.TrimPrefix(name, prefix)
}

func (r *Repository) show(ctx context.Context, hash, path string) (string, error) {
	out, err := r.git(ctx, "show", hash+":"+path)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// archive extracts the tree of hash into root.
func (r *Repository) archive(ctx context.Context, hash, root string) error {
	out, err := r.git(ctx, "archive", "--format=tar", hash)
	if err != nil {
		return err
	}
	tr := tar.NewReader(bytes.NewReader(out))
	files := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive of %s: %w", hash, err)
		}
		if hdr.Typeflag != tar.TypeReg || !filepath.IsLocal(hdr.Name) {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, tr)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
		files++
	}
	r.logger.Debug("revision extracted", "hash", hash, "root", root, "files", files)
	return nil
}
