// Package images - Encoded image snapshots of annotated frames.
package images

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Extension returns the file extension used when writing the format.
func (f ImageFormat) Extension() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// Encode compresses a Mat into an Image.
//
// Arguments:
//   - mat: The frame to encode (typically an annotated frame).
//   - format: FormatJPEG or FormatPNG.
//
// Returns:
//   - Image: The encoded bytes and the frame dimensions.
//   - error: if the Mat is empty or encoding fails.
func Encode(mat gocv.Mat, format ImageFormat) (Image, error) {
	if mat.Empty() {
		return Image{}, ErrEmptyFrame
	}

	ext := gocv.JPEGFileExt
	if format == FormatPNG {
		ext = gocv.PNGFileExt
	} else {
		format = FormatJPEG
	}

	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return Image{}, errors.Wrapf(err, "encode %s", format)
	}
	defer buf.Close()

	// GetBytes aliases native memory, copy before Close.
	data := append([]byte(nil), buf.GetBytes()...)

	return Image{
		Format: format,
		Data:   data,
		Width:  mat.Cols(),
		Height: mat.Rows(),
	}, nil
}
