package source

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageFile represents an image file of a recorded sequence.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from the file name, -1 when absent.
	Frame int
}

// ListImageFiles lists the image files of a directory in playback order:
// by the trailing frame number of the file name ("frame-12.png" -> 12), then
// by name.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The files in playback order.
// - error: Error if the directory cannot be read.
func ListImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png":
			files = append(files, ImageFile{
				Path:  filepath.Join(dir, entry.Name()),
				Frame: frameNumber(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))),
			})
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Frame != files[j].Frame {
			return files[i].Frame < files[j].Frame
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func frameNumber(stem string) int {
	end := len(stem)
	start := end
	for start > 0 && unicode.IsDigit(rune(stem[start-1])) {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(stem[start:end])
	if err != nil {
		return -1
	}
	return n
}

// Directory replays a recorded image sequence as a finite frame source.
// Every frame is resized to the configured size so a pipeline always sees
// consistent dimensions.
type Directory struct {
	files  []ImageFile
	next   int
	width  int
	height int
}

// OpenDirectory lists a directory of frames.
//
// Arguments:
//   - dir: Directory of .png/.jpg frames.
//   - width, height: Output size; 0 keeps each image's own size.
func OpenDirectory(dir string, width, height int) (*Directory, error) {
	files, err := ListImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no image frames in %s", dir)
	}
	return &Directory{files: files, width: width, height: height}, nil
}

// Len returns the number of frames in the sequence.
func (d *Directory) Len() int {
	return len(d.files)
}

// Read decodes the next image into dst as a 3-channel Mat. An unreadable or
// undecodable file is a transient failure; the sequence moves on.
func (d *Directory) Read(dst *gocv.Mat) error {
	if d.next >= len(d.files) {
		return ErrSourceExhausted
	}
	file := d.files[d.next]
	d.next++

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return errors.Wrap(ErrEmptyFrame, err.Error())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(ErrEmptyFrame, "decode %s: %v", file.Path, err)
	}

	bounds := img.Bounds()
	if d.width > 0 && d.height > 0 && (bounds.Dx() != d.width || bounds.Dy() != d.height) {
		img = resize.Resize(uint(d.width), uint(d.height), img, resize.Bilinear)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrapf(err, "convert %s", file.Path)
	}
	defer mat.Close()
	mat.CopyTo(dst)
	return nil
}

// Rewind restarts the sequence from the first frame.
func (d *Directory) Rewind() {
	d.next = 0
}

// Close is a no-op; files are read one at a time.
func (d *Directory) Close() error {
	return nil
}
