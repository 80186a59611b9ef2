package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ReadImage loads a page image from disk as an inline base64 payload.
func ReadImage(path, mimeType string) (*ImagePart, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("read image: %s is empty", path)
	}
	if mimeType == "" {
		mimeType = mimeFromPath(path)
	}
	return &ImagePart{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(b)}, nil
}

// DataURL renders an image part as a data: URL.
func DataURL(img ImagePart) string {
	return "data:" + img.MIMEType + ";base64," + img.Data
}

// Bytes decodes the base64 payload.
func (p ImagePart) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

func mimeFromPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
