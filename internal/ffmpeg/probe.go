// Package ffmpeg wraps ffmpeg and ffprobe as the video transcoding and
// probing capability. Command argument lists are built by pure functions so
// the selection logic is testable without the tools installed.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/qiyuan-z/livemotion/internal/execx"
)

// StreamInfo carries the codec and color properties of the first video
// stream.
type StreamInfo struct {
	CodecName        string
	PixFmt           string
	ColorSpace       string
	ColorTransfer    string
	ColorPrimaries   string
	BitsPerRawSample string
}

// IsHDR reports whether the stream should go through the HDR-preserving
// encode: 10-bit samples or a PQ/HLG transfer.
func (si StreamInfo) IsHDR() bool {
	if strings.Contains(si.BitsPerRawSample, "10") {
		return true
	}
	switch si.ColorTransfer {
	case "arib-std-b67", "smpte2084":
		return true
	}
	return false
}

// MetaPacket is one packet of a timed metadata (data) stream.
type MetaPacket struct {
	PTS         float64
	Size        int
	Duration    float64
	HasDuration bool
}

type Prober struct {
	run execx.Runner
}

func NewProber(r execx.Runner) *Prober {
	return &Prober{run: r}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Packets []ffprobePacket `json:"packets"`
}

type ffprobeStream struct {
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	PixFmt           string `json:"pix_fmt"`
	ColorSpace       string `json:"color_space"`
	ColorTransfer    string `json:"color_transfer"`
	ColorPrimaries   string `json:"color_primaries"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
}

type ffprobePacket struct {
	PTSTime      string `json:"pts_time"`
	DurationTime string `json:"duration_time"`
	Size         string `json:"size"`
}

// VideoStream probes the first video stream's color properties.
func (p *Prober) VideoStream(ctx context.Context, path string) (StreamInfo, error) {
	out, err := p.run.Run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_streams",
		"-of", "json",
		path,
	)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var ff ffprobeOutput
	if err := json.Unmarshal(out, &ff); err != nil {
		return StreamInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	for _, s := range ff.Streams {
		if s.CodecType != "video" {
			continue
		}
		return StreamInfo{
			CodecName:        s.CodecName,
			PixFmt:           s.PixFmt,
			ColorSpace:       s.ColorSpace,
			ColorTransfer:    s.ColorTransfer,
			ColorPrimaries:   s.ColorPrimaries,
			BitsPerRawSample: s.BitsPerRawSample,
		}, nil
	}
	return StreamInfo{}, fmt.Errorf("probe %s: no video stream", path)
}

// TimedMetadataPackets scans the packets of the first data stream, where
// QuickTime keeps the still-image-time marker of a Live Photo.
func (p *Prober) TimedMetadataPackets(ctx context.Context, path string) ([]MetaPacket, error) {
	out, err := p.run.Run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "d:0",
		"-show_entries", "packet=pts_time,duration_time,size",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probe metadata packets of %s: %w", path, err)
	}

	var ff ffprobeOutput
	if err := json.Unmarshal(out, &ff); err != nil {
		return nil, fmt.Errorf("probe metadata packets of %s: %w", path, err)
	}

	packets := make([]MetaPacket, 0, len(ff.Packets))
	for _, pk := range ff.Packets {
		pts, err := strconv.ParseFloat(pk.PTSTime, 64)
		if err != nil {
			continue
		}
		size, _ := strconv.Atoi(pk.Size)
		mp := MetaPacket{PTS: pts, Size: size}
		if dur, err := strconv.ParseFloat(pk.DurationTime, 64); err == nil {
			mp.Duration = dur
			mp.HasDuration = true
		}
		packets = append(packets, mp)
	}
	return packets, nil
}
