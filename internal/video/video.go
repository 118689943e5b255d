// Package video defines decoded frames, frame sources and the sampling plan
// shared by both keyframe detectors.
package video

import (
	"bytes"
	"image"
	"image/jpeg"
)

// DefaultJPEGQuality is the quality used when persisting keyframes.
const DefaultJPEGQuality = 95

// Metadata describes an opened video.
type Metadata struct {
	FrameCount int     `json:"total_frames"`
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Duration   float64 `json:"duration"`
	Codec      string  `json:"codec,omitempty"`
}

// Timestamp returns the presentation time in seconds of a native frame index.
func (m Metadata) Timestamp(frame int) float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(frame) / m.FPS
}

// Frame is a decoded RGB24 frame.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pix    []byte // RGB24, row-major, len = Width*Height*3
}

// Image returns the frame as an image.Image.
func (f *Frame) Image() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// EncodeJPEG encodes the frame as a JPEG.
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Source produces decoded frames in presentation order.
// After Seek(i) the next ReadNext returns frame i.
type Source interface {
	Metadata() Metadata
	ReadNext() (*Frame, error)
	Seek(frame int) error
	Close() error
}
