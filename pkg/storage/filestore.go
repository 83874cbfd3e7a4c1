package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileRef describes a stored file. Path is the storage-relative reference
// persisted with the owning record.
type FileRef struct {
	Name string
	Path string
	Size int64
}

// FileStore is the physical byte storage collaborator. Implementations keep
// the file name opaque; callers persist the returned reference.
type FileStore interface {
	Save(ctx context.Context, fileName string, content io.Reader) (*FileRef, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalStore stores files under basePath/subfolder/yyyy/MM/<uuid><ext>.
type LocalStore struct {
	basePath     string
	subfolder    string
	maxSizeBytes int64
	allowedExts  map[string]struct{}
}

type LocalStoreConfig struct {
	BasePath          string
	Subfolder         string
	MaxFileSizeMB     int
	AllowedExtensions []string
}

func NewLocalStore(cfg LocalStoreConfig) (*LocalStore, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if cfg.Subfolder == "" {
		cfg.Subfolder = "documents"
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx"}
	}

	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[strings.ToLower(strings.TrimSpace(ext))] = struct{}{}
	}

	return &LocalStore{
		basePath:     cfg.BasePath,
		subfolder:    cfg.Subfolder,
		maxSizeBytes: int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		allowedExts:  exts,
	}, nil
}

func (s *LocalStore) Save(ctx context.Context, fileName string, content io.Reader) (*FileRef, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := s.allowedExts[ext]; !ok {
		return nil, fmt.Errorf("file extension %q is not allowed", ext)
	}

	yearMonth := time.Now().Format("2006/01")
	dir := filepath.Join(s.basePath, s.subfolder, yearMonth)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	stored := uuid.New().String() + ext
	fullPath := filepath.Join(dir, stored)

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	// LimitReader caps the copy at one byte over the limit so oversized
	// uploads are detected without buffering them.
	n, err := io.Copy(f, io.LimitReader(content, s.maxSizeBytes+1))
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if n > s.maxSizeBytes {
		os.Remove(fullPath)
		return nil, fmt.Errorf("file exceeds maximum size of %d MB", s.maxSizeBytes/(1024*1024))
	}
	if n == 0 {
		os.Remove(fullPath)
		return nil, fmt.Errorf("file is empty")
	}

	relPath := filepath.ToSlash(filepath.Join(s.subfolder, yearMonth, stored))
	return &FileRef{Name: fileName, Path: relPath, Size: n}, nil
}

func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ContentType maps a file name to its MIME type for downloads.
func ContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	default:
		return "application/octet-stream"
	}
}
