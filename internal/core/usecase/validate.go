package usecase

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// allowedExtensions maps accepted extensions to their canonical MIME type.
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type FileValidator struct {
	maxFileSize int64
}

func NewFileValidator(maxFileSize int64) *FileValidator {
	if maxFileSize <= 0 {
		maxFileSize = 100 << 20
	}
	return &FileValidator{maxFileSize: maxFileSize}
}

// Validate screens one selected file. Rules apply in order, first failure
// wins. A MIME/extension mismatch is a warning, not a rejection, because
// browsers routinely misreport MIME types. An unexpected internal failure
// degrades to extension-only acceptance instead of failing the batch.
func (v *FileValidator) Validate(file ports.SelectedFile) (verdict domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = v.extensionOnly(file, r)
		}
	}()

	name := strings.TrimSpace(file.Name)
	if name == "" || file.Size <= 0 {
		return domain.Verdict{Reason: "file is empty or has no name"}
	}

	ext := strings.ToLower(filepath.Ext(name))
	canonicalMime, ok := allowedExtensions[ext]
	if !ok {
		return domain.Verdict{Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}

	if file.Size > v.maxFileSize {
		return domain.Verdict{Reason: fmt.Sprintf("size exceeds %dMB", v.maxFileSize>>20)}
	}

	verdict = domain.Verdict{Accepted: true}
	if file.MimeType != "" && !mimeMatches(file.MimeType, canonicalMime) {
		verdict.Warning = fmt.Sprintf("mime type %q does not match extension %s", file.MimeType, ext)
	}

	if ext == ".pdf" {
		pages, err := countPDFPages(file.ReaderAt, file.Size)
		if err != nil {
			verdict.Warning = joinWarnings(verdict.Warning, "could not inspect pdf page count")
		} else {
			verdict.PageCount = pages
		}
	} else {
		verdict.PageCount = 1
	}
	return verdict
}

// extensionOnly is the degraded path taken when inspection itself blew up.
func (v *FileValidator) extensionOnly(file ports.SelectedFile, cause any) domain.Verdict {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if _, ok := allowedExtensions[ext]; !ok {
		return domain.Verdict{Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
	return domain.Verdict{
		Accepted: true,
		Warning:  fmt.Sprintf("file inspection failed, accepted by extension only: %v", cause),
	}
}

func countPDFPages(r io.ReaderAt, size int64) (pages int, err error) {
	if r == nil {
		return 0, fmt.Errorf("no random-access handle for pdf inspection")
	}
	// The pdf package panics on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parse panic: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func mimeMatches(reported, canonical string) bool {
	reported = strings.ToLower(strings.TrimSpace(reported))
	if idx := strings.IndexByte(reported, ';'); idx >= 0 {
		reported = strings.TrimSpace(reported[:idx])
	}
	if reported == canonical {
		return true
	}
	// image/jpg is a common non-standard alias.
	return reported == "image/jpg" && canonical == "image/jpeg"
}

func joinWarnings(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "; " + b
}
