// Package util - Frame replay from a directory of captured images.
package util

import (
	"bytes"
	"encoding/binary"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

// DepthExt is the extension of an optional depth sidecar next to a frame.
const DepthExt = ".depth"

// MaxDepthDimension bounds each side of a depth sidecar.
const MaxDepthDimension = 1 << 16

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
	// DepthPath is the frame-N.depth sidecar, or "" when there is none.
	DepthPath string
}

// Decode decodes the image bytes.
func (f ImageFile) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", f.Path)
	}
	return img, nil
}

// LoadDepth reads the frame's depth sidecar. It returns nil maps when the
// frame has none.
func (f ImageFile) LoadDepth() (*depth.Maps, error) {
	if f.DepthPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(f.DepthPath)
	if err != nil {
		return nil, err
	}

	return DecodeDepth(data)
}

// LoadDirectoryImageFiles reads all frame-N image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile sorted by frame number.
// - error: Error if loading fails or a file name carries no frame number.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := filepath.Ext(file.Name())
		switch strings.ToLower(ext) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			imgPath := filepath.Join(dir, file.Name())
			data, readErr := os.ReadFile(imgPath)
			if readErr != nil {
				return nil, readErr
			}
			stem := strings.TrimSuffix(file.Name(), ext)
			frame, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-"))
			if err != nil {
				return nil, errors.Wrapf(err, "no frame number in %s", file.Name())
			}

			img := ImageFile{
				Path:  imgPath,
				Data:  data,
				Frame: frame,
			}
			depthPath := filepath.Join(dir, stem+DepthExt)
			if _, statErr := os.Stat(depthPath); statErr == nil {
				img.DepthPath = depthPath
			}
			images = append(images, img)
		}
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Frame < images[j].Frame
	})

	return images, nil
}

// EncodeDepth serializes maps as a little-endian width and height (uint32),
// the float32 depth values and then the confidence bytes.
func EncodeDepth(m *depth.Maps) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(m.Width))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(m.Height))
	_ = binary.Write(&buf, binary.LittleEndian, m.Depth)
	buf.Write(m.Confidence)
	return buf.Bytes()
}

// DecodeDepth parses the EncodeDepth layout.
func DecodeDepth(data []byte) (*depth.Maps, error) {
	if len(data) < 8 {
		return nil, errors.New("depth sidecar too short")
	}
	rawW := binary.LittleEndian.Uint32(data[0:4])
	rawH := binary.LittleEndian.Uint32(data[4:8])
	if rawW == 0 || rawH == 0 || rawW > MaxDepthDimension || rawH > MaxDepthDimension {
		return nil, errors.Errorf("depth sidecar size %dx%d outside 1..%d", rawW, rawH, MaxDepthDimension)
	}

	w, h := int(rawW), int(rawH)
	n := w * h
	if len(data) != 8+n*5 {
		return nil, errors.Errorf("depth sidecar of %d bytes does not fit %dx%d", len(data), w, h)
	}

	values := make([]float32, n)
	if err := binary.Read(bytes.NewReader(data[8:8+n*4]), binary.LittleEndian, values); err != nil {
		return nil, errors.Wrap(err, "failed to read depth values")
	}
	confidence := append([]uint8(nil), data[8+n*4:]...)

	return depth.NewMaps(w, h, values, confidence)
}
