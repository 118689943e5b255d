package ffprobe

import (
	"errors"
	"math"
	"testing"

	coreerrors "github.com/five82/keyframes/internal/errors"
)

const probe1080p = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "duration": "10.010000", "nb_frames": "300",
     "disposition": {"default": 1, "attached_pic": 0}},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
  ],
  "format": {"duration": "10.020000"}
}`

const probeNoFrameCount = `{
  "streams": [
    {"codec_name": "vp9", "codec_type": "video", "width": 640, "height": 360,
     "r_frame_rate": "25/1", "avg_frame_rate": "0/0"}
  ],
  "format": {"duration": "4.000000"}
}`

const probeCoverArt = `{
  "streams": [
    {"codec_name": "mjpeg", "codec_type": "video", "width": 500, "height": 500,
     "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}}
  ],
  "format": {"duration": "180.0"}
}`

const probeAudioOnly = `{
  "streams": [{"codec_name": "mp3", "codec_type": "audio", "channels": 2}],
  "format": {"duration": "180.0"}
}`

func TestParseMetadata(t *testing.T) {
	meta, err := ParseMetadata([]byte(probe1080p))
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}
	if meta.Width != 1920 || meta.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", meta.Width, meta.Height)
	}
	if meta.FrameCount != 300 {
		t.Errorf("FrameCount = %d, want 300", meta.FrameCount)
	}
	if math.Abs(meta.FPS-29.97) > 0.001 {
		t.Errorf("FPS = %g, want ~29.97", meta.FPS)
	}
	if meta.Duration != 10.01 {
		t.Errorf("Duration = %g, want stream duration 10.01", meta.Duration)
	}
	if meta.Codec != "h264" {
		t.Errorf("Codec = %q, want h264", meta.Codec)
	}
}

func TestParseMetadataDerivesFrameCount(t *testing.T) {
	meta, err := ParseMetadata([]byte(probeNoFrameCount))
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}
	if meta.FPS != 25 {
		t.Errorf("FPS = %g, want r_frame_rate fallback 25", meta.FPS)
	}
	if meta.FrameCount != 100 {
		t.Errorf("FrameCount = %d, want duration*fps = 100", meta.FrameCount)
	}
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind coreerrors.ErrorKind
	}{
		{"malformed json", `{"streams": [`, coreerrors.KindJSONParse},
		{"audio only", probeAudioOnly, coreerrors.KindFFprobeParse},
		{"cover art only", probeCoverArt, coreerrors.KindFFprobeParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(tt.data))
			if !coreerrors.IsKind(err, tt.kind) {
				t.Errorf("ParseMetadata() error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestProbeMapsFailuresToInvalidVideo(t *testing.T) {
	orig := runFFprobe
	t.Cleanup(func() { runFFprobe = orig })

	runFFprobe = func(string) (string, error) { return "", errors.New("exit status 1") }
	if _, err := Probe("missing.mp4"); !coreerrors.IsInvalidVideo(err) {
		t.Errorf("Probe() error = %v, want InvalidVideo", err)
	}

	runFFprobe = func(string) (string, error) { return probeAudioOnly, nil }
	if _, err := Probe("song.mp3"); !coreerrors.IsInvalidVideo(err) {
		t.Errorf("Probe() error = %v, want InvalidVideo", err)
	}

	runFFprobe = func(string) (string, error) { return probe1080p, nil }
	meta, err := Probe("clip.mp4")
	if err != nil || meta.FrameCount != 300 {
		t.Errorf("Probe() = %+v, %v", meta, err)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOk bool
	}{
		{"30/1", 30, true},
		{"24000/1001", 24000.0 / 1001, true},
		{"25", 25, true},
		{"0/0", 0, false},
		{"30/0", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseFrameRate(tt.input)
			if ok != tt.wantOk || got != tt.want {
				t.Errorf("ParseFrameRate(%q) = %g, %v; want %g, %v", tt.input, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}
