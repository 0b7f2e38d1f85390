package dataset

import (
	"path/filepath"
	"strings"
)

// Record is one labelled site photo
type Record struct {
	ID               string   `json:"id" parquet:"id"`
	ImagePath        string   `json:"image_path" parquet:"image_path"`
	ContentType      string   `json:"content_type,omitempty" parquet:"content_type"`
	ExpectedKeywords []string `json:"expected_keywords" parquet:"expected_keywords,list"`
}

// GetContentType returns the declared content type, falling back to one
// inferred from the image extension.
func (r *Record) GetContentType() string {
	if r.ContentType != "" {
		return r.ContentType
	}
	switch strings.ToLower(filepath.Ext(r.ImagePath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return ""
}

// ResolveImagePath interprets relative image paths against the dataset's directory
func (r *Record) ResolveImagePath(datasetPath string) string {
	if r.ImagePath == "" || filepath.IsAbs(r.ImagePath) {
		return r.ImagePath
	}
	return filepath.Join(filepath.Dir(datasetPath), r.ImagePath)
}
