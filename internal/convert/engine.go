// Package convert drives whole conversions: each pipeline wires the
// detector, splitter/assembler, HDR path selector, transcoder and identity
// correlator into one job.
package convert

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiyuan-z/livemotion/internal/config"
	"github.com/qiyuan-z/livemotion/internal/container"
	"github.com/qiyuan-z/livemotion/internal/detect"
	"github.com/qiyuan-z/livemotion/internal/execx"
	"github.com/qiyuan-z/livemotion/internal/ffmpeg"
	"github.com/qiyuan-z/livemotion/internal/fsutil"
	"github.com/qiyuan-z/livemotion/internal/hdr"
	"github.com/qiyuan-z/livemotion/internal/identity"
	"github.com/qiyuan-z/livemotion/internal/mediatag"
)

type Engine struct {
	tags  *mediatag.Store
	det   *detect.Detector
	sel   *hdr.Selector
	video *ffmpeg.Transcoder
	asm   *container.Assembler
	ident *identity.Correlator
}

// NewEngine wires the component graph from the process-lifetime capability
// set and a tool runner.
func NewEngine(cfg *config.Config, caps hdr.Capabilities, run execx.Runner) *Engine {
	tags := mediatag.NewStore(run)
	if cfg.ExiftoolConfig != "" {
		if _, err := os.Stat(cfg.ExiftoolConfig); err == nil {
			tags.ConfigPath = cfg.ExiftoolConfig
		} else {
			log.Printf("exiftool config not found at %s, vendor tag writes will be incomplete", cfg.ExiftoolConfig)
		}
	}
	det := detect.New(tags)
	video := ffmpeg.NewTranscoder(run, caps.LiveWriter)
	return &Engine{
		tags:  tags,
		det:   det,
		sel:   hdr.NewSelector(caps, run, tags, cfg.ConvertQuality),
		video: video,
		asm:   container.NewAssembler(tags),
		ident: identity.NewCorrelator(tags, video.Prober(), cfg.MakerNotesPath),
	}
}

func (e *Engine) Detector() *detect.Detector { return e.det }

// MotionPhoto builds a Motion Photo JPG from an image and its MOV clip:
// re-encode the image, transcode the clip to HEVC MP4, inject the tag
// schemes with the final MP4 size, then append the MP4.
func (e *Engine) MotionPhoto(ctx context.Context, imagePath, movPath, outJPG, workDir string) error {
	signal := e.det.HDRSignal(ctx, imagePath)
	if signal != detect.SDR {
		log.Printf("hdr source detected: %s (%s)", imagePath, signal)
	}

	staticJPG := filepath.Join(workDir, "static.jpg")
	if err := e.sel.ToJPEG(ctx, imagePath, staticJPG, workDir, signal); err != nil {
		return err
	}

	embeddedMP4 := filepath.Join(workDir, "video.mp4")
	if err := e.video.ToMP4(ctx, movPath, embeddedMP4); err != nil {
		return err
	}

	// The cover marker rides in the MOV's timed metadata track; carrying it
	// into the tags keeps the cover frame when converting back. Best effort.
	var timestampUs int64
	if packets, err := e.video.Prober().TimedMetadataPackets(ctx, movPath); err == nil {
		timestampUs, _ = identity.InferCoverTimestampUs(packets)
	}

	// Assemble in the work dir and publish with a copy, so a failed job
	// never leaves a partial composite in the output directory.
	composite := filepath.Join(workDir, "composite.jpg")
	if err := e.asm.Assemble(ctx, composite, staticJPG, embeddedMP4, timestampUs); err != nil {
		return err
	}
	if err := fsutil.CopyFile(composite, outJPG); err != nil {
		return err
	}
	e.verifyDateTime(ctx, imagePath, outJPG)
	return nil
}

// MotionPhotoFromLIVP unpacks a .livp archive and builds the Motion Photo
// from its image and video entries.
func (e *Engine) MotionPhotoFromLIVP(ctx context.Context, livpPath, outJPG, workDir string) error {
	imagePath, movPath, err := container.ExtractLIVP(livpPath, workDir)
	if err != nil {
		return err
	}
	return e.MotionPhoto(ctx, imagePath, movPath, outJPG, workDir)
}

// LivePhoto splits a Motion Photo JPG into a .HEIC + .mov Live Photo pair,
// correlated by one content identifier and the resolved cover timestamp.
func (e *Engine) LivePhoto(ctx context.Context, jpgPath, outHEIC, workDir string) (heicPath, movPath string, err error) {
	base := strings.TrimSuffix(outHEIC, filepath.Ext(outHEIC))
	heicPath = base + ".HEIC"
	movPath = base + ".mov"

	staticJPG := filepath.Join(workDir, "static.jpg")
	embeddedMP4 := filepath.Join(workDir, "video.mp4")
	if err := container.SplitToFiles(ctx, e.det, jpgPath, staticJPG, embeddedMP4); err != nil {
		return "", "", err
	}

	contentID := identity.NewContentIdentifier()
	timestampUs := e.ident.CoverTimestampUs(ctx, jpgPath, embeddedMP4)
	log.Printf("content identifier %s, cover timestamp %dus", contentID, timestampUs)

	signal := e.det.HDRSignal(ctx, jpgPath)
	if err := e.sel.ToHEIC(ctx, staticJPG, heicPath, workDir, jpgPath, signal); err != nil {
		return "", "", err
	}
	if err := e.video.ToMOV(ctx, embeddedMP4, movPath, contentID, timestampUs); err != nil {
		return "", "", err
	}

	if err := e.ident.StampImage(ctx, heicPath, contentID, timestampUs); err != nil {
		return "", "", err
	}
	if err := e.ident.StampVideo(ctx, movPath, contentID); err != nil {
		return "", "", err
	}
	e.verifyDateTime(ctx, jpgPath, heicPath)
	return heicPath, movPath, nil
}

// verifyDateTime warns when the capture timestamp did not survive the
// conversion; never fails the job.
func (e *Engine) verifyDateTime(ctx context.Context, src, dst string) {
	want, okSrc := e.tags.ReadOne(ctx, src, "-DateTimeOriginal")
	if !okSrc {
		if want, okSrc = mediatag.DateTimeOriginal(src); !okSrc {
			return
		}
	}
	got, okDst := e.tags.ReadOne(ctx, dst, "-DateTimeOriginal")
	if !okDst || got != want {
		log.Printf("warning: DateTimeOriginal not preserved for %s (src %q, dst %q)", dst, want, got)
	}
}

// Run executes the pipeline for mode on one input, writing into outDir and
// using workDir for intermediates. It returns the primary output path.
func (e *Engine) Run(ctx context.Context, mode Mode, in Input, outDir, workDir string) (string, error) {
	base := fsutil.BaseName(in.Primary)
	switch mode {
	case ModeLIVP:
		out := filepath.Join(outDir, base+".jpg")
		return out, e.MotionPhotoFromLIVP(ctx, in.Primary, out, workDir)
	case ModeHEIC:
		out := filepath.Join(outDir, base+".jpg")
		return out, e.MotionPhoto(ctx, in.Primary, in.Sidecar, out, workDir)
	case ModeJPG:
		heic, _, err := e.LivePhoto(ctx, in.Primary, filepath.Join(outDir, base+".HEIC"), workDir)
		return heic, err
	}
	return "", fmt.Errorf("unknown conversion mode %q", mode)
}
