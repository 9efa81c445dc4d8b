// Package hdr selects between the gain-map-aware image encode and the
// standard re-encode. The enhanced path is strictly best effort: any failure
// drops to the standard path; only a standard-path failure fails the job.
package hdr

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qiyuan-z/livemotion/internal/container"
	"github.com/qiyuan-z/livemotion/internal/detect"
	"github.com/qiyuan-z/livemotion/internal/execx"
	"github.com/qiyuan-z/livemotion/internal/mediatag"
)

type Selector struct {
	caps    Capabilities
	run     execx.Runner
	tags    *mediatag.Store
	quality int
}

func NewSelector(caps Capabilities, r execx.Runner, tags *mediatag.Store, quality int) *Selector {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &Selector{caps: caps, run: r, tags: tags, quality: quality}
}

// ToJPEG converts src (HEIC or JPEG) into a standalone JPEG at dst. An HDR
// source tries the Ultra HDR encode first when the tool chain is present.
// workDir holds intermediates and belongs to the calling job.
func (s *Selector) ToJPEG(ctx context.Context, src, dst, workDir string, signal detect.HDRSignal) error {
	if signal != detect.SDR && s.caps.UltraHDR {
		if err := s.ultraHDRJPEG(ctx, src, dst, workDir); err != nil {
			log.Printf("ultra hdr encode failed for %s, using standard path: %v", src, err)
		} else {
			return nil
		}
	}
	return s.standardJPEG(ctx, src, dst)
}

// ToHEIC converts src (a static JPEG) into a HEIC at dst, copying metadata
// from metaSource and stripping the motion tag schemes. An Ultra HDR source
// tries to carry its secondary gain map picture into the target container.
func (s *Selector) ToHEIC(ctx context.Context, src, dst, workDir, metaSource string, signal detect.HDRSignal) error {
	if signal == detect.UltraHDRSource && s.caps.UltraHDR {
		if err := s.gainMapHEIC(ctx, src, dst, workDir); err != nil {
			log.Printf("gain map carry-over failed for %s, using standard path: %v", src, err)
		} else {
			return s.copyMetaStripped(ctx, dst, metaSource)
		}
	}

	q := strconv.Itoa(s.quality)
	if _, err := s.run.Run(ctx, "magick", src, "-auto-orient", "-quality", q, dst); err != nil {
		return fmt.Errorf("encode heic from %s: %w", src, err)
	}
	return s.copyMetaStripped(ctx, dst, metaSource)
}

// standardJPEG is the fallback path: re-encode through magick with the
// pixels physically re-oriented, then copy metadata with the orientation
// tag reset to normal. Skipping the reset would rotate twice downstream.
func (s *Selector) standardJPEG(ctx context.Context, src, dst string) error {
	q := strconv.Itoa(s.quality)
	_, err := s.run.Run(ctx, "magick", src,
		"-auto-orient",
		"-quality", q,
		"-sampling-factor", "4:2:0",
		"-colorspace", "sRGB",
		dst,
	)
	if err != nil {
		return fmt.Errorf("encode jpeg from %s: %w", src, err)
	}
	return s.tags.CopyAllFrom(ctx, dst, src,
		"-Orientation=",
		"-Orientation#=1",
	)
}

// ultraHDRJPEG decodes the HEIC base plus its auxiliary gain map image and
// encodes an Ultra HDR JPEG from the pair.
func (s *Selector) ultraHDRJPEG(ctx context.Context, src, dst, workDir string) error {
	basePNG := filepath.Join(workDir, "base.png")
	if _, err := s.run.Run(ctx, "heif-convert", "--with-aux", src, basePNG); err != nil {
		return err
	}

	gainPNG, err := findGainMapAux(workDir)
	if err != nil {
		return err
	}

	baseJPG := filepath.Join(workDir, "base.jpg")
	gainJPG := filepath.Join(workDir, "gainmap.jpg")
	q := strconv.Itoa(s.quality)
	if _, err := s.run.Run(ctx, "magick", basePNG, "-auto-orient", "-quality", q, "-colorspace", "sRGB", baseJPG); err != nil {
		return err
	}
	if _, err := s.run.Run(ctx, "magick", gainPNG, "-auto-orient", "-quality", q, gainJPG); err != nil {
		return err
	}
	if _, err := s.run.Run(ctx, "ultrahdr_app", "-m", "0", "-i", baseJPG, "-g", gainJPG, "-z", dst); err != nil {
		return err
	}

	return s.tags.CopyAllFrom(ctx, dst, src,
		"-Orientation=",
		"-Orientation#=1",
	)
}

// gainMapHEIC extracts the secondary picture of a multi-picture JPEG and
// re-embeds it as the target's auxiliary gain map image.
func (s *Selector) gainMapHEIC(ctx context.Context, src, dst, workDir string) error {
	gainJPG := filepath.Join(workDir, "gainmap.jpg")
	if err := s.tags.ExtractBinary(ctx, src, "MPImage2", gainJPG); err != nil {
		return err
	}

	baseJPG := filepath.Join(workDir, "primary.jpg")
	q := strconv.Itoa(s.quality)
	if _, err := s.run.Run(ctx, "magick", src, "-auto-orient", "-quality", q, baseJPG); err != nil {
		return err
	}
	_, err := s.run.Run(ctx, "heif-enc",
		"-q", q,
		"-o", dst,
		"--aux", "urn:com:apple:photo:2020:aux:hdrgainmap="+gainJPG,
		baseJPG,
	)
	return err
}

func (s *Selector) copyMetaStripped(ctx context.Context, dst, metaSource string) error {
	extra := append([]string{}, container.StripMotionTags...)
	extra = append(extra, "-Orientation=", "-Orientation#=1")
	return s.tags.CopyAllFrom(ctx, dst, metaSource, extra...)
}

// findGainMapAux locates the auxiliary image heif-convert wrote next to the
// base, preferring a file named after the Apple gain map urn.
func findGainMapAux(workDir string) (string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", err
	}
	var fallback string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "base.png" || filepath.Ext(name) != ".png" {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "hdrgainmap") {
			return filepath.Join(workDir, name), nil
		}
		if strings.Contains(lower, "aux") && fallback == "" {
			fallback = filepath.Join(workDir, name)
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no auxiliary gain map image produced in %s", workDir)
}
