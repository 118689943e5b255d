package video

import (
	"fmt"
	"io"
)

// MemorySource is an in-memory Source, useful for tests and for callers
// that already hold decoded frames.
type MemorySource struct {
	Meta   Metadata
	Frames []*Frame

	// FailAt makes ReadNext fail at that position when >= 0.
	FailAt int

	// Seeks records every Seek target; Reads counts successful reads.
	Seeks []int
	Reads int

	pos    int
	closed bool
}

// NewMemorySource builds a source from frames with the given fps. Width and
// height are taken from the first frame.
func NewMemorySource(fps float64, frames []*Frame) *MemorySource {
	meta := Metadata{FrameCount: len(frames), FPS: fps}
	if len(frames) > 0 {
		meta.Width = frames[0].Width
		meta.Height = frames[0].Height
	}
	if fps > 0 {
		meta.Duration = float64(len(frames)) / fps
	}
	return &MemorySource{Meta: meta, Frames: frames, FailAt: -1}
}

// SolidFrame builds a frame filled with one RGB color.
func SolidFrame(width, height int, r, g, b byte) *Frame {
	pix := make([]byte, width*height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
	return &Frame{Width: width, Height: height, Pix: pix}
}

// Metadata implements Source.
func (m *MemorySource) Metadata() Metadata {
	return m.Meta
}

// ReadNext implements Source.
func (m *MemorySource) ReadNext() (*Frame, error) {
	if m.closed {
		return nil, fmt.Errorf("source closed")
	}
	if m.FailAt >= 0 && m.pos == m.FailAt {
		return nil, fmt.Errorf("decode failed at frame %d", m.pos)
	}
	if m.pos >= len(m.Frames) {
		return nil, io.EOF
	}
	src := m.Frames[m.pos]
	m.pos++
	m.Reads++
	f := *src
	return &f, nil
}

// Seek implements Source.
func (m *MemorySource) Seek(frame int) error {
	m.Seeks = append(m.Seeks, frame)
	if frame < 0 || frame >= len(m.Frames) {
		return fmt.Errorf("seek to frame %d out of range [0,%d)", frame, len(m.Frames))
	}
	m.pos = frame
	return nil
}

// Close implements Source.
func (m *MemorySource) Close() error {
	m.closed = true
	return nil
}
