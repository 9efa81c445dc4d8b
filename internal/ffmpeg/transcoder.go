package ffmpeg

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/qiyuan-z/livemotion/internal/execx"
)

// Transcoder runs ffmpeg-based conversions for the motion video payloads.
type Transcoder struct {
	run   execx.Runner
	probe *Prober

	// HasLiveWriter marks the optional platform video writer probed once at
	// startup. When absent, MOV output falls back to a plain remux: pairing
	// still works, the editable cover frame marker is sacrificed.
	HasLiveWriter bool
}

func NewTranscoder(r execx.Runner, hasLiveWriter bool) *Transcoder {
	return &Transcoder{run: r, probe: NewProber(r), HasLiveWriter: hasLiveWriter}
}

func (t *Transcoder) Prober() *Prober { return t.probe }

// ToMP4 rewrites a MOV clip as HEVC MP4 for embedding. A clip that is
// already HEVC is stream-copied to avoid a lossy re-encode; anything else is
// transcoded, preserving HDR color where the source signals it.
func (t *Transcoder) ToMP4(ctx context.Context, input, output string) error {
	info, err := t.probe.VideoStream(ctx, input)
	if err != nil {
		return err
	}
	if info.CodecName == "hevc" {
		if _, err := t.run.Run(ctx, "ffmpeg", RemuxArgs(input, output)...); err != nil {
			return fmt.Errorf("remux %s: %w", input, err)
		}
		return nil
	}
	if info.IsHDR() {
		log.Printf("hdr video detected in %s, keeping 10-bit and color metadata", input)
	}
	if _, err := t.run.Run(ctx, "ffmpeg", TranscodeArgs(input, output, info)...); err != nil {
		return fmt.Errorf("transcode %s: %w", input, err)
	}
	return nil
}

// ToMOV rewrites an MP4 clip as the Live Photo's MOV side, embedding the
// content identifier and, when the platform writer is present, the
// still-image-time marker at timestampUs.
func (t *Transcoder) ToMOV(ctx context.Context, input, output, contentID string, timestampUs int64) error {
	if t.HasLiveWriter {
		args := []string{
			"--input", input,
			"--output", output,
			"--content-identifier", contentID,
			"--still-image-time-us", strconv.FormatInt(timestampUs, 10),
		}
		if _, err := t.run.Run(ctx, "livewriter", args...); err == nil {
			return nil
		} else {
			log.Printf("livewriter failed for %s, falling back to remux: %v", input, err)
		}
	}
	if _, err := t.run.Run(ctx, "ffmpeg", RemuxWithIdentityArgs(input, output, contentID)...); err != nil {
		return fmt.Errorf("remux %s: %w", input, err)
	}
	return nil
}
