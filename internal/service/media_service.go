package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/mocktest-backend/internal/config"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Allowed image MIME types.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaService stores uploaded images on local disk below UPLOAD_DIR.
type MediaService struct {
	cfg *config.Config
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config) *MediaService {
	return &MediaService{cfg: cfg}
}

// CheckImage validates the declared content type and size of an upload and
// returns the file extension to store it with.
func (s *MediaService) CheckImage(header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}
	if header.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}
	return ext, nil
}

// SaveQuestionImage stores an image attached to a question and returns its URL path.
func (s *MediaService) SaveQuestionImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext, err := s.CheckImage(header)
	if err != nil {
		return "", err
	}
	return s.Save("questions", uuid.New().String()+ext, file)
}

// Save writes r to UPLOAD_DIR/dir/name and returns the public URL path.
func (s *MediaService) Save(dir, name string, r io.Reader) (string, error) {
	destDir := filepath.Join(s.cfg.UploadDir, dir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(destDir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return "/uploads/" + filepath.ToSlash(filepath.Join(dir, name)), nil
}

// ReadImage validates an upload and reads it fully into memory.
func (s *MediaService) ReadImage(file multipart.File, header *multipart.FileHeader) ([]byte, string, error) {
	ext, err := s.CheckImage(header)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, s.cfg.MaxUploadBytes+1)); err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > s.cfg.MaxUploadBytes {
		return nil, "", fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, s.cfg.MaxUploadBytes)
	}
	return buf.Bytes(), ext, nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
