package hdr

import (
	"log"

	"github.com/qiyuan-z/livemotion/internal/execx"
)

// Capabilities records which external tool chains are present. Probed once
// per process at startup and injected read-only into components; jobs never
// re-probe.
type Capabilities struct {
	Magick     bool
	Exiftool   bool
	FFmpeg     bool
	FFprobe    bool
	UltraHDR   bool // heif-convert + ultrahdr_app gain map chain
	LiveWriter bool // platform still-image-time writer
}

// Probe checks tool presence on PATH.
func Probe() Capabilities {
	caps := Capabilities{
		Magick:     execx.Available("magick"),
		Exiftool:   execx.Available("exiftool"),
		FFmpeg:     execx.Available("ffmpeg"),
		FFprobe:    execx.Available("ffprobe"),
		LiveWriter: execx.Available("livewriter"),
	}
	caps.UltraHDR = execx.Available("heif-convert") &&
		execx.Available("ultrahdr_app") &&
		caps.Exiftool
	return caps
}

// LogSummary prints what was found, the way the startup banner reports it.
func (c Capabilities) LogSummary() {
	report := func(name string, ok bool, required bool) {
		switch {
		case ok:
			log.Printf("  %s: found", name)
		case required:
			log.Printf("  %s: NOT FOUND (required for conversion)", name)
		default:
			log.Printf("  %s: not found (optional)", name)
		}
	}
	log.Println("checking external tools:")
	report("magick", c.Magick, true)
	report("exiftool", c.Exiftool, true)
	report("ffmpeg", c.FFmpeg, true)
	report("ffprobe", c.FFprobe, true)
	report("ultrahdr chain (heif-convert + ultrahdr_app)", c.UltraHDR, false)
	report("livewriter", c.LiveWriter, false)
}
