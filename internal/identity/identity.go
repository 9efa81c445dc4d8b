// Package identity generates and propagates the content identifier and
// cover timestamp that bind a Live Photo's image and video.
package identity

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/qiyuan-z/livemotion/internal/ffmpeg"
	"github.com/qiyuan-z/livemotion/internal/mediatag"
)

// Timed metadata packets carrying the still-image-time marker are tiny and,
// when a duration is reported, essentially instantaneous.
const (
	maxMarkerPacketBytes = 16
	maxMarkerDurationSec = 0.020
)

// NewContentIdentifier returns a fresh identifier in the canonical uppercase
// 8-4-4-4-12 form Apple exports use. One per job; both sides of the pair get
// the same string verbatim.
func NewContentIdentifier() string {
	return strings.ToUpper(uuid.NewString())
}

type Correlator struct {
	tags           *mediatag.Store
	probe          *ffmpeg.Prober
	makerNotesPath string
}

func NewCorrelator(tags *mediatag.Store, probe *ffmpeg.Prober, makerNotesPath string) *Correlator {
	return &Correlator{tags: tags, probe: probe, makerNotesPath: makerNotesPath}
}

// CoverTimestampUs resolves the cover-frame presentation timestamp for a
// motion photo being converted to a Live Photo. Resolution order: explicit
// tag on the source image (primary field, then legacy field), inference from
// the embedded video's timed metadata track, and finally 0. Never a negative
// or missing sentinel.
func (c *Correlator) CoverTimestampUs(ctx context.Context, imagePath, videoPath string) int64 {
	for _, tag := range []string{
		"-XMP-GCamera:MicroVideoPresentationTimestampUs",
		"-XMP-GCamera:MotionPhotoPresentationTimestampUs",
	} {
		if v, present := c.tags.ReadOne(ctx, imagePath, tag); present {
			if ts, good := mediatag.ParseTimestampUs(v); good {
				return ts
			}
		}
	}
	if ts, ok := c.inferFromVideo(ctx, videoPath); ok {
		return ts
	}
	return 0
}

func (c *Correlator) inferFromVideo(ctx context.Context, videoPath string) (int64, bool) {
	packets, err := c.probe.TimedMetadataPackets(ctx, videoPath)
	if err != nil {
		return 0, false
	}
	return InferCoverTimestampUs(packets)
}

// InferCoverTimestampUs picks the still-image-time marker out of timed
// metadata packets: positive presentation time, marker-sized payload,
// near-zero duration when one is known. The earliest candidate wins,
// rounded to the nearest microsecond.
func InferCoverTimestampUs(packets []ffmpeg.MetaPacket) (int64, bool) {
	best := math.Inf(1)
	for _, p := range packets {
		if p.PTS <= 0 || p.Size > maxMarkerPacketBytes {
			continue
		}
		if p.HasDuration && p.Duration > maxMarkerDurationSec {
			continue
		}
		if p.PTS < best {
			best = p.PTS
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return int64(math.Round(best * 1e6)), true
}

// StampImage writes the identifier and timestamp onto the HEIC side. The
// Apple MakerNotes block must exist before ContentIdentifier can live in it,
// so a pre-extracted blob is injected first when available. The identifier
// write is required; the vendor timestamp field is best effort, backed by
// the cross-platform XMP field.
func (c *Correlator) StampImage(ctx context.Context, heicPath, contentID string, timestampUs int64) error {
	if c.makerNotesPath != "" {
		if _, err := os.Stat(c.makerNotesPath); err == nil {
			if err := c.tags.InjectBinary(ctx, heicPath, "MakerNotes", c.makerNotesPath); err != nil {
				log.Printf("makernotes injection failed for %s: %v", heicPath, err)
			}
		} else {
			log.Printf("makernotes blob not found: %s", c.makerNotesPath)
		}
	}

	if err := c.tags.Write(ctx, heicPath, "-ContentIdentifier="+contentID); err != nil {
		return err
	}

	if err := c.tags.Write(ctx, heicPath,
		fmt.Sprintf("-LivePhotoVideoIndex=%d", timestampUs),
	); err != nil {
		log.Printf("vendor cover timestamp write failed for %s: %v", heicPath, err)
	}
	if err := c.tags.Write(ctx, heicPath,
		fmt.Sprintf("-XMP-GCamera:MicroVideoPresentationTimestampUs=%d", timestampUs),
	); err != nil {
		log.Printf("fallback cover timestamp write failed for %s: %v", heicPath, err)
	}
	return nil
}

// StampVideo writes the identifier into the MOV's QuickTime Keys, matching
// what the remux already put in the container so both readers agree.
func (c *Correlator) StampVideo(ctx context.Context, movPath, contentID string) error {
	return c.tags.Write(ctx, movPath, "-Keys:ContentIdentifier="+contentID)
}
