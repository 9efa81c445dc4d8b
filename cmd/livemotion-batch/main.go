package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/qiyuan-z/livemotion/internal/batch"
	"github.com/qiyuan-z/livemotion/internal/config"
	"github.com/qiyuan-z/livemotion/internal/convert"
	"github.com/qiyuan-z/livemotion/internal/execx"
	"github.com/qiyuan-z/livemotion/internal/hdr"
	"github.com/qiyuan-z/livemotion/internal/history"
	"github.com/qiyuan-z/livemotion/internal/watcher"
)

func main() {
	typeFlag := flag.String("type", "", "conversion type: livp | heic | jpg")
	input := flag.String("input", "", "input directory")
	output := flag.String("output", "", "output directory; default: <input>/<output format>")
	watch := flag.Bool("watch", false, "keep watching the input directory after the initial batch")
	recent := flag.Int("recent", 0, "print the last N conversion records from the history db and exit")
	flag.Parse()

	if *recent > 0 {
		showRecent(*recent)
		return
	}

	if *typeFlag == "" || *input == "" {
		fmt.Fprintln(os.Stderr, "error: --type and --input are required")
		flag.Usage()
		os.Exit(1)
	}

	mode, err := convert.ParseMode(*typeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	inputDir, err := filepath.Abs(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if fi, err := os.Stat(inputDir); err != nil || !fi.IsDir() {
		fmt.Fprintf(os.Stderr, "error: input directory not found: %s\n", inputDir)
		os.Exit(1)
	}

	outDir := *output
	if outDir == "" {
		outDir = filepath.Join(inputDir, mode.OutputFormat())
	}
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	caps := hdr.Probe()
	caps.LogSummary()
	if mode != convert.ModeJPG {
		if caps.UltraHDR {
			log.Println("hdr support: ultra hdr tool chain found, hdr sources will try ultra hdr jpg output")
		} else {
			log.Println("hdr support: ultra hdr tool chain incomplete, using sdr path (video embedding unaffected)")
		}
	}

	var hist *history.Store
	if cfg.HistoryDBPath != "" {
		hist, err = history.Open(cfg.HistoryDBPath)
		if err != nil {
			log.Printf("history db unavailable (%v), continuing without it", err)
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	eng := convert.NewEngine(cfg, caps, execx.System{Timeout: cfg.ToolTimeout})
	orch := batch.NewOrchestrator(eng, hist, cfg.MaxWorkers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := orch.Run(ctx, mode, inputDir, outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("done: %d succeeded, %d failed, output %s\n", res.Success, len(res.Failures), outDir)
	if len(res.Failures) > 0 {
		fmt.Println("\nfailed files:")
		for _, f := range res.Failures {
			fmt.Printf("  - %s\n    %s\n", f.Path, f.Message)
		}
	}

	if *watch {
		w, err := watcher.New(orch, hist, mode, inputDir, outDir, cfg.StabilityDelay, cfg.MD5ChunkSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: watch setup failed: %v\n", err)
			os.Exit(1)
		}
		defer w.Close()
		if err := w.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if len(res.Failures) > 0 {
		os.Exit(1)
	}
}

// showRecent reports the latest history records, newest first.
func showRecent(n int) {
	cfg := config.Load()
	if cfg.HistoryDBPath == "" {
		fmt.Fprintln(os.Stderr, "error: --recent requires HISTORY_DB to be set")
		os.Exit(1)
	}
	hist, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open history db: %v\n", err)
		os.Exit(1)
	}
	defer hist.Close()

	recs, err := hist.Recent(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read history: %v\n", err)
		os.Exit(1)
	}
	for _, r := range recs {
		line := fmt.Sprintf("%s  %-4s %-7s %s", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Status, r.InputPath)
		if r.Status == history.StatusFailed {
			line += "  (" + r.Error + ")"
		}
		fmt.Println(line)
	}
}
