// Package ffmpeg decodes video files into raw RGB frames by piping them out
// of an ffmpeg process.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/fallback"
	"github.com/five82/keyframes/internal/ffprobe"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/video"
)

// Decode backend names.
const (
	BackendHWAccel  = "hwaccel"
	BackendSoftware = "software"
)

// stderrTailSize bounds how much ffmpeg stderr is kept for error messages.
const stderrTailSize = 4096

// Options configures a Decoder.
type Options struct {
	// HWAccel tries a hardware decode backend before software decoding.
	HWAccel bool
}

// Decoder implements video.Source over an ffmpeg rawvideo pipe. Seeking
// restarts the ffmpeg process at the target frame.
type Decoder struct {
	ctx       context.Context
	path      string
	meta      video.Metadata
	backend   string
	frameSize int

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *tailBuffer
	stopCtx func() bool
	pending *video.Frame
}

// OpenFile probes path and opens a decoder for it.
func OpenFile(ctx context.Context, path string, opts Options) (*Decoder, error) {
	meta, err := ffprobe.Probe(path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, path, meta, opts)
}

// Open starts decoding path from frame 0. With HWAccel set it tries the
// hardware backend first and falls back to software decoding if the first
// frame cannot be produced.
func Open(ctx context.Context, path string, meta video.Metadata, opts Options) (*Decoder, error) {
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, coreerrors.NewInvalidVideoError(fmt.Sprintf("invalid dimensions %dx%d", meta.Width, meta.Height), nil)
	}

	var steps []fallback.Step[string, *Decoder]
	if opts.HWAccel {
		steps = append(steps, fallback.Step[string, *Decoder]{Name: BackendHWAccel, Run: openBackend(meta, BackendHWAccel)})
	}
	steps = append(steps, fallback.Step[string, *Decoder]{Name: BackendSoftware, Run: openBackend(meta, BackendSoftware)})

	log := logging.Global().WithPrefix("ffmpeg")
	chain := fallback.New(steps...)
	chain.OnFallback = func(ev fallback.Event) {
		log.Warn("decode backend failed, falling back", "from", ev.From, "to", ev.To, "error", ev.Err)
	}

	d, err := chain.Do(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, coreerrors.NewCancelledError()
		}
		return nil, coreerrors.NewInvalidVideoError(fmt.Sprintf("cannot decode %s", path), err)
	}
	log.Debug("decoder opened", "path", path, "backend", chain.Current(), "fallbacks", len(chain.Events()))
	return d, nil
}

func openBackend(meta video.Metadata, backend string) fallback.StepFunc[string, *Decoder] {
	return func(ctx context.Context, path string) (*Decoder, error) {
		d := &Decoder{
			ctx:       ctx,
			path:      path,
			meta:      meta,
			backend:   backend,
			frameSize: meta.Width * meta.Height * 3,
		}
		if err := d.start(0); err != nil {
			return nil, err
		}
		f, err := d.readFrame()
		if err != nil {
			d.stop()
			return nil, err
		}
		d.pending = f
		return d, nil
	}
}

// Backend returns the decode backend in use.
func (d *Decoder) Backend() string {
	return d.backend
}

// Metadata implements video.Source.
func (d *Decoder) Metadata() video.Metadata {
	return d.meta
}

// ReadNext implements video.Source. It returns io.EOF at the end of the stream.
func (d *Decoder) ReadNext() (*video.Frame, error) {
	if f := d.pending; f != nil {
		d.pending = nil
		return f, nil
	}
	if d.stdout == nil {
		return nil, io.EOF
	}
	return d.readFrame()
}

// Seek implements video.Source.
func (d *Decoder) Seek(frame int) error {
	if frame < 0 || frame >= d.meta.FrameCount {
		return fmt.Errorf("seek to frame %d outside [0,%d)", frame, d.meta.FrameCount)
	}
	d.stop()
	d.pending = nil
	return d.start(frame)
}

// Close implements video.Source.
func (d *Decoder) Close() error {
	d.stop()
	return nil
}

func (d *Decoder) start(frame int) error {
	cmd := buildCommand(d.path, seekSeconds(frame, d.meta.FPS), d.backend)
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return coreerrors.NewCommandStartError("ffmpeg", err)
	}
	if err := cmd.Start(); err != nil {
		return coreerrors.NewCommandStartError("ffmpeg", err)
	}

	proc := cmd.Process
	d.stopCtx = context.AfterFunc(d.ctx, func() {
		_ = proc.Kill()
	})
	d.cmd = cmd
	d.stdout = stdout
	d.stderr = stderr
	return nil
}

func (d *Decoder) stop() {
	if d.cmd == nil {
		return
	}
	if d.stopCtx != nil {
		d.stopCtx()
	}
	_ = d.cmd.Process.Kill()
	_ = d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
	d.stopCtx = nil
}

func (d *Decoder) readFrame() (*video.Frame, error) {
	buf := make([]byte, d.frameSize)
	if _, err := io.ReadFull(d.stdout, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, d.finish()
		}
		return nil, err
	}
	return &video.Frame{Width: d.meta.Width, Height: d.meta.Height, Pix: buf}, nil
}

// finish reaps the process at end of stream. A clean exit is io.EOF.
func (d *Decoder) finish() error {
	cmd, stderr := d.cmd, d.stderr
	if d.stopCtx != nil {
		d.stopCtx()
	}
	d.cmd, d.stdout, d.stopCtx = nil, nil, nil
	if cmd == nil {
		return io.EOF
	}
	if err := cmd.Wait(); err != nil {
		if d.ctx.Err() != nil {
			return d.ctx.Err()
		}
		return coreerrors.WrapExecError("ffmpeg", err, stderr.String())
	}
	return io.EOF
}

// buildCommand assembles the ffmpeg invocation for one decode run.
func buildCommand(path string, seek float64, backend string) *exec.Cmd {
	// Frames keep their coded orientation so their size matches the probed
	// width and height.
	in := ffmpeg.KwArgs{
		"loglevel":     "error",
		"nostdin":      "",
		"noautorotate": "",
	}
	if seek > 0 {
		in["ss"] = strconv.FormatFloat(seek, 'f', 6, 64)
	}
	if backend == BackendHWAccel {
		in["hwaccel"] = "auto"
	}
	return ffmpeg.Input(path, in).
		Output("pipe:", ffmpeg.KwArgs{
			"f":       "rawvideo",
			"pix_fmt": "rgb24",
			"an":      "",
			"sn":      "",
		}).
		Compile()
}

func seekSeconds(frame int, fps float64) float64 {
	if frame <= 0 || fps <= 0 {
		return 0
	}
	return float64(frame) / fps
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
