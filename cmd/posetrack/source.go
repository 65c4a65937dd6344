package main

import (
	"image"
	"io"
	"time"

	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/util"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// source produces sensor images. Read returns io.EOF when it is exhausted.
type source interface {
	Read() (image.Image, *depth.Maps, error)
	Close() error
}

// cameraSource reads from a video capture device. Cameras carry no depth.
type cameraSource struct {
	device  int
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

func openCamera(device int) (*cameraSource, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture device %d", device)
	}

	return &cameraSource{device: device, capture: capture, mat: gocv.NewMat()}, nil
}

func (c *cameraSource) Read() (image.Image, *depth.Maps, error) {
	for {
		if ok := c.capture.Read(&c.mat); !ok {
			return nil, nil, errors.Errorf("cannot read device %d", c.device)
		}
		if !c.mat.Empty() {
			break
		}
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to convert capture")
	}

	return img, nil, nil
}

func (c *cameraSource) Close() error {
	c.mat.Close()
	return c.capture.Close()
}

// directorySource replays frame-N images, with optional depth sidecars, at a
// fixed interval.
type directorySource struct {
	files    []util.ImageFile
	next     int
	interval time.Duration
	last     time.Time
}

func openDirectory(dir string, interval time.Duration) (*directorySource, error) {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load frames from %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frames in %s", dir)
	}

	return &directorySource{files: files, interval: interval}, nil
}

func (d *directorySource) Read() (image.Image, *depth.Maps, error) {
	if d.next >= len(d.files) {
		return nil, nil, io.EOF
	}
	if d.interval > 0 && !d.last.IsZero() {
		if wait := d.interval - time.Since(d.last); wait > 0 {
			time.Sleep(wait)
		}
	}
	d.last = time.Now()

	f := d.files[d.next]
	d.next++

	img, err := f.Decode()
	if err != nil {
		return nil, nil, err
	}
	maps, err := f.LoadDepth()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load depth for frame %d", f.Frame)
	}

	return img, maps, nil
}

func (d *directorySource) Close() error {
	return nil
}
