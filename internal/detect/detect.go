// Package detect classifies motion-image containers from their metadata.
package detect

import (
	"context"
	"strings"

	"github.com/qiyuan-z/livemotion/internal/fsutil"
	"github.com/qiyuan-z/livemotion/internal/mediatag"
)

// HDRSignal classifies a source image's dynamic range. It drives path
// selection only and never mutates the source.
type HDRSignal int

const (
	SDR HDRSignal = iota
	HDRSource
	UltraHDRSource
)

func (s HDRSignal) String() string {
	switch s {
	case HDRSource:
		return "hdr"
	case UltraHDRSource:
		return "ultrahdr"
	default:
		return "sdr"
	}
}

// offsetProbes is the fixed probe order for the embedded video length:
// Google's single-offset scheme, then the container directory scheme, then
// the vendor scalar/list scheme (Xiaomi MVIMG and similar).
var offsetProbes = []struct {
	selector string
	key      string
}{
	{"-XMP-GCamera:MicroVideoOffset", "MicroVideoOffset"},
	{"-XMP-Container:Directory1Length", "Directory1Length"},
	{"-DirectoryItemLength", "DirectoryItemLength"},
}

// hdrTransferHints are matched case-insensitively against the transfer
// characteristic string of HEIC sources.
var hdrTransferHints = []string{
	"st 2084",
	"smpte2084",
	"bt.2100",
	"arib-std-b67",
	"hlg",
	"hdrgainmap",
}

type Detector struct {
	tags *mediatag.Store
}

func New(tags *mediatag.Store) *Detector {
	return &Detector{tags: tags}
}

// VideoOffset returns the byte length of the embedded trailing video,
// probing tags in fixed priority order; the first value that parses as a
// non-negative integer wins. ok is false when no tag parses; a plain image
// is a normal outcome, not an error.
func (d *Detector) VideoOffset(ctx context.Context, path string) (length int64, ok bool, err error) {
	selectors := make([]string, 0, len(offsetProbes))
	for _, p := range offsetProbes {
		selectors = append(selectors, p.selector)
	}
	vals, err := d.tags.Read(ctx, path, selectors...)
	if err != nil {
		return 0, false, err
	}
	for _, p := range offsetProbes {
		v, present := vals[p.key]
		if !present {
			continue
		}
		if n, good := mediatag.ParseLength(v); good {
			return n, true, nil
		}
	}
	return 0, false, nil
}

// HDRSignal classifies the source. Detection is heuristic and best effort:
// any read failure degrades to SDR, which only forces the standard path.
func (d *Detector) HDRSignal(ctx context.Context, path string) HDRSignal {
	switch {
	case fsutil.HasExt(path, ".heic", ".heif"):
		vals, err := d.tags.Read(ctx, path, "-HDRGainMapVersion", "-TransferCharacteristics")
		if err != nil {
			return SDR
		}
		if _, present := vals["HDRGainMapVersion"]; present {
			return HDRSource
		}
		transfer := strings.ToLower(vals["TransferCharacteristics"])
		for _, hint := range hdrTransferHints {
			if strings.Contains(transfer, hint) {
				return HDRSource
			}
		}
	case fsutil.HasExt(path, ".jpg", ".jpeg"):
		vals, err := d.tags.Read(ctx, path, "-XMP-hdrgm:Version", "-MPF:NumberOfImages")
		if err != nil {
			return SDR
		}
		if _, present := vals["Version"]; present {
			return UltraHDRSource
		}
		if n, good := mediatag.ParseCount(vals["NumberOfImages"]); good && n > 1 {
			return UltraHDRSource
		}
	}
	return SDR
}
