// Package filestore provides the file store the reconciliation engine and the
// CLI use for every filesystem access: existence and type probes, reads,
// atomic writes, directory creation and project manifest persistence.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/types"
)

// Default permissions for entries created without explicit ones.
const (
	DefaultFileMode os.FileMode = 0o644
	DefaultDirMode  os.FileMode = 0o755
)

// DirEntry is one child of a directory.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FileStore is the filesystem contract of the core.
type FileStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)
	IsDirectory(ctx context.Context, path string) (bool, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile creates missing parent directories and replaces path atomically.
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error
	CreateDirectory(ctx context.Context, path string, perm os.FileMode) error
	// ReadDir lists the children of path sorted by name.
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
	// GetProjectManifest returns nil, nil when projectPath has no manifest.
	GetProjectManifest(ctx context.Context, projectPath string) (*types.ProjectManifest, error)
	UpdateProjectManifest(ctx context.Context, projectPath string, m *types.ProjectManifest) error
}

// ManifestPath returns the manifest location of a project.
func ManifestPath(projectPath string) string {
	return filepath.Join(projectPath, types.ManifestDir, types.ManifestFile)
}

// OS is the FileStore backed by the local filesystem. Manifest writes to the
// same path are serialized.
type OS struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOS creates an OS file store.
func NewOS() *OS {
	return &OS{locks: make(map[string]*sync.Mutex)}
}

var _ FileStore = (*OS)(nil)

func (s *OS) stat(ctx context.Context, path string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.FileOperationError("STAT", path, "cannot stat path", err)
	}
	return info, nil
}

// Exists reports whether path exists.
func (s *OS) Exists(ctx context.Context, path string) (bool, error) {
	info, err := s.stat(ctx, path)
	return info != nil, err
}

// IsFile reports whether path is a regular file.
func (s *OS) IsFile(ctx context.Context, path string) (bool, error) {
	info, err := s.stat(ctx, path)
	return info != nil && info.Mode().IsRegular(), err
}

// IsDirectory reports whether path is a directory.
func (s *OS) IsDirectory(ctx context.Context, path string) (bool, error) {
	info, err := s.stat(ctx, path)
	return info != nil && info.IsDir(), err
}

// ReadFile reads path.
func (s *OS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileOperationError("READ", path, "cannot read file", err)
	}
	return data, nil
}

// WriteFile writes data to path through a temp file and rename.
func (s *OS) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if perm == 0 {
		perm = DefaultFileMode
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return errors.FileOperationError("WRITE", path, "cannot create parent directory", err)
	}
	if err := WriteFileAtomic(path, data, perm); err != nil {
		return errors.FileOperationError("WRITE", path, "atomic write failed", err)
	}
	return nil
}

// CreateDirectory creates path and any missing parents.
func (s *OS) CreateDirectory(ctx context.Context, path string, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if perm == 0 {
		perm = DefaultDirMode
	}
	if err := os.MkdirAll(path, perm); err != nil {
		return errors.FileOperationError("MKDIR", path, "cannot create directory", err)
	}
	return nil
}

// ReadDir lists path.
func (s *OS) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.FileOperationError("READDIR", path, "cannot list directory", err)
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetProjectManifest reads and normalizes the manifest of projectPath.
func (s *OS) GetProjectManifest(ctx context.Context, projectPath string) (*types.ProjectManifest, error) {
	path := ManifestPath(projectPath)
	info, err := s.stat(ctx, path)
	if err != nil || info == nil {
		return nil, err
	}

	data, err := s.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return DecodeManifest(path, data)
}

// UpdateProjectManifest writes m to projectPath's manifest.
func (s *OS) UpdateProjectManifest(ctx context.Context, projectPath string, m *types.ProjectManifest) error {
	path := ManifestPath(projectPath)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	data, err := EncodeManifest(m)
	if err != nil {
		return errors.WrapInternal(err, errors.ErrCodeInternalError, "cannot encode manifest").WithPath(path)
	}
	return s.WriteFile(ctx, path, data, DefaultFileMode)
}

func (s *OS) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// EncodeManifest renders a manifest as 2-space indented JSON.
func EncodeManifest(m *types.ProjectManifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses manifest JSON read from path and fills defaults.
func DecodeManifest(path string, data []byte) (*types.ProjectManifest, error) {
	var m types.ProjectManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.ManifestInvalid(path, err)
	}
	m.Normalize()
	return &m, nil
}

// WriteFileAtomic writes data to path atomically using a temp file + rename.
// The temp file is created in the same directory as path so the rename stays
// on one filesystem. On failure the original file, if any, is left unchanged.
// The caller must ensure the parent directory exists.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".scaffold-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}
