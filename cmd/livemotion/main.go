package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiyuan-z/livemotion/internal/batch"
	"github.com/qiyuan-z/livemotion/internal/config"
	"github.com/qiyuan-z/livemotion/internal/convert"
	"github.com/qiyuan-z/livemotion/internal/execx"
	"github.com/qiyuan-z/livemotion/internal/fsutil"
	"github.com/qiyuan-z/livemotion/internal/hdr"
)

func main() {
	input := flag.String("input", "", "input file: .livp, .heic (with same-name .mov) or .jpg motion photo")
	output := flag.String("output", "", "output path; default: same directory and base name as input")
	verbose := flag.Bool("log", false, "enable logging output")
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "error: --input is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*input); err != nil {
		fail("input file not found: %s", *input)
	}

	cfg := config.Load()
	caps := hdr.Probe()
	if *verbose {
		caps.LogSummary()
	}
	eng := convert.NewEngine(cfg, caps, execx.System{Timeout: cfg.ToolTimeout})
	ctx := context.Background()

	workDir, err := os.MkdirTemp("", "livemotion_")
	if err != nil {
		fail("create temp dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	switch {
	case fsutil.HasExt(*input, ".livp"):
		out := motionOutputPath(*input, *output)
		if err := eng.MotionPhotoFromLIVP(ctx, *input, out, workDir); err != nil {
			fail("conversion failed: %v", err)
		}
		fmt.Println(out)

	case fsutil.HasExt(*input, ".heic"):
		sidecar, ok := batch.FindSidecar(*input)
		if !ok {
			fail("matching .mov file not found for %s", *input)
		}
		out := motionOutputPath(*input, *output)
		if err := eng.MotionPhoto(ctx, *input, sidecar, out, workDir); err != nil {
			fail("conversion failed: %v", err)
		}
		fmt.Println(out)

	case fsutil.HasExt(*input, ".jpg", ".jpeg"):
		out := *output
		if out == "" {
			out = filepath.Join(filepath.Dir(*input), fsutil.BaseName(*input)+".HEIC")
		}
		heic, mov, err := eng.LivePhoto(ctx, *input, out, workDir)
		if err != nil {
			fail("conversion failed: %v", err)
		}
		fmt.Println(heic)
		fmt.Println(mov)

	default:
		fail("unsupported input format %s (want .livp, .heic or .jpg)", filepath.Ext(*input))
	}
}

// motionOutputPath resolves the Motion Photo JPG output, avoiding writing
// over the input when it is itself a .jpg.
func motionOutputPath(input, output string) string {
	if output == "" {
		output = filepath.Join(filepath.Dir(input), fsutil.BaseName(input)+".jpg")
	}
	if strings.EqualFold(output, input) {
		output = filepath.Join(filepath.Dir(input), fsutil.BaseName(input)+"_motion.jpg")
	}
	return output
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
