package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ahrav/go-zsb/internal/domain"
)

// Image is one image file encoded for a vision-language backend.
type Image struct {
	// Name is the file name relative to the loaded directory.
	Name string
	// DataURL is a base64 data URL carrying the sniffed MIME type.
	DataURL string
}

// LoadImages reads every image file directly under dir, sorted by name.
// Files whose content does not sniff as an image are skipped; hidden files
// and subdirectories are ignored. An empty result is an error.
func LoadImages(dir string) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images in %s: %w", dir, err)
	}

	var images []Image
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", e.Name(), err)
		}
		url, ok := DataURL(data)
		if !ok {
			continue
		}
		images = append(images, Image{Name: e.Name(), DataURL: url})
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found in %s: %w", dir, domain.ErrEmptyValue)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// DataURL encodes data as a base64 data URL. It reports false when the
// content is not an image.
func DataURL(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", false
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), true
}

// ImageIndex maps image names to data URLs.
func ImageIndex(images []Image) map[string]string {
	idx := make(map[string]string, len(images))
	for _, img := range images {
		idx[img.Name] = img.DataURL
	}
	return idx
}
