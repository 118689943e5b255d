// Package ffprobe reads video metadata with ffprobe.
package ffprobe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/video"
)

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	NbFrames     string `json:"nb_frames"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	Disposition  struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// runFFprobe is replaced in tests.
var runFFprobe = func(inputPath string) (string, error) {
	return ffmpeg.Probe(inputPath)
}

// Probe returns the metadata of the first video stream in inputPath.
// Any failure is reported as an invalid video.
func Probe(inputPath string) (video.Metadata, error) {
	out, err := runFFprobe(inputPath)
	if err != nil {
		return video.Metadata{}, coreerrors.NewInvalidVideoError(fmt.Sprintf("cannot probe %s", inputPath), err)
	}
	meta, err := ParseMetadata([]byte(out))
	if err != nil {
		return video.Metadata{}, coreerrors.NewInvalidVideoError(fmt.Sprintf("cannot read metadata of %s", inputPath), err)
	}
	return meta, nil
}

func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, coreerrors.NewJSONParseError("failed to parse ffprobe output", err)
	}
	return &result, nil
}

// ParseMetadata extracts video metadata from ffprobe JSON. The frame count
// comes from nb_frames when present, otherwise from duration * fps.
func ParseMetadata(data []byte) (video.Metadata, error) {
	probe, err := parseFFprobeOutput(data)
	if err != nil {
		return video.Metadata{}, err
	}

	var vs *ffprobeStream
	for i := range probe.Streams {
		s := &probe.Streams[i]
		if s.CodecType == "video" && s.Disposition.AttachedPic == 0 {
			vs = s
			break
		}
	}
	if vs == nil {
		return video.Metadata{}, coreerrors.NewFFprobeParseError("no video stream found")
	}
	if vs.Width <= 0 || vs.Height <= 0 {
		return video.Metadata{}, coreerrors.NewFFprobeParseError(fmt.Sprintf("invalid dimensions %dx%d", vs.Width, vs.Height))
	}

	fps, ok := ParseFrameRate(vs.AvgFrameRate)
	if !ok {
		fps, ok = ParseFrameRate(vs.RFrameRate)
	}
	if !ok {
		return video.Metadata{}, coreerrors.NewFFprobeParseError(fmt.Sprintf("invalid frame rate %q", vs.RFrameRate))
	}

	duration := parseFloat(vs.Duration)
	if duration == 0 {
		duration = parseFloat(probe.Format.Duration)
	}

	frames, _ := strconv.Atoi(vs.NbFrames)
	if frames <= 0 {
		frames = int(math.Round(duration * fps))
	}
	if frames <= 0 {
		return video.Metadata{}, coreerrors.NewFFprobeParseError("cannot determine frame count")
	}
	if duration == 0 {
		duration = float64(frames) / fps
	}

	return video.Metadata{
		FrameCount: frames,
		FPS:        fps,
		Width:      vs.Width,
		Height:     vs.Height,
		Duration:   duration,
		Codec:      vs.CodecName,
	}, nil
}

// ParseFrameRate parses an ffprobe rational such as "30000/1001" or "25".
func ParseFrameRate(s string) (float64, bool) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	if !found {
		return n, true
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return n / d, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
