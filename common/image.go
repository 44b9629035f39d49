package common

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	ImageFormatAuto = "auto"
	ImageFormatAvif = "avif"
	ImageFormatBmp  = "bmp"
	ImageFormatGif  = "gif"
	ImageFormatJpeg = "jpeg"
	ImageFormatJpg  = "jpg"
	ImageFormatPng  = "png"
	ImageFormatTiff = "tiff"
	ImageFormatWebp = "webp"
)

const defaultMimeType = "image/jpeg"

var mimeTypeMap = map[string]string{
	ImageFormatJpg:  "image/jpeg",
	ImageFormatJpeg: "image/jpeg",
	ImageFormatPng:  "image/png",
	ImageFormatGif:  "image/gif",
	ImageFormatWebp: "image/webp",
}

var imageExts = map[string]bool{
	ImageFormatAvif: true,
	ImageFormatBmp:  true,
	ImageFormatGif:  true,
	ImageFormatJpeg: true,
	ImageFormatJpg:  true,
	ImageFormatPng:  true,
	ImageFormatTiff: true,
	"tif":           true,
	ImageFormatWebp: true,
}

// NormalizeImageFormat lower cases a format name or file extension and strips
// its leading dot. `jpeg` is folded into `jpg`.
func NormalizeImageFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, ".")
	if format == ImageFormatJpeg {
		format = ImageFormatJpg
	}
	return format
}

// GetImageMimeType returns MIME type for given format, unknown formats are
// treated as JPEG.
func GetImageMimeType(format string) string {
	if mime, ok := mimeTypeMap[NormalizeImageFormat(format)]; ok {
		return mime
	}
	return defaultMimeType
}

// GetURLImageFormat returns normalized extension of path part of an image URL.
func GetURLImageFormat(rawURL string) string {
	if index := strings.IndexAny(rawURL, "?#"); index >= 0 {
		rawURL = rawURL[:index]
	}
	return NormalizeImageFormat(path.Ext(rawURL))
}

// IsImageFile reports whether file name has a known image extension.
func IsImageFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return imageExts[ext]
}

// ReadImageConfig reads image header of given file and returns its dimension
// and normalized format name. Pixel data is not decoded.
func ReadImageConfig(filePath string) (image.Config, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to open image %s: %s", filePath, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	if strings.EqualFold(filepath.Ext(filePath), "."+ImageFormatAvif) {
		config, err := avif.DecodeConfig(reader)
		if err != nil {
			return config, "", fmt.Errorf("failed to read AVIF header %s: %s", filePath, err)
		}
		return config, ImageFormatAvif, nil
	}

	config, format, err := image.DecodeConfig(reader)
	if err != nil {
		return config, "", fmt.Errorf("failed to read image header %s: %s", filePath, err)
	}

	return config, NormalizeImageFormat(format), nil
}
