// Package batch enumerates eligible inputs for a conversion mode and runs
// one isolated job per input, aggregating successes and an ordered failure
// list. A failing job never stops the batch or touches another job's state.
package batch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/qiyuan-z/livemotion/internal/convert"
	"github.com/qiyuan-z/livemotion/internal/fsutil"
	"github.com/qiyuan-z/livemotion/internal/history"
)

// JobRunner executes one conversion job. Implemented by *convert.Engine.
type JobRunner interface {
	Run(ctx context.Context, mode convert.Mode, in convert.Input, outDir, workDir string) (string, error)
}

// Failure names one failed input and why.
type Failure struct {
	Path    string
	Message string
}

// Result aggregates a batch run.
type Result struct {
	Success  int
	Failures []Failure
}

type Orchestrator struct {
	jobs    JobRunner
	hist    *history.Store
	workers int
}

func NewOrchestrator(jobs JobRunner, hist *history.Store, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{jobs: jobs, hist: hist, workers: workers}
}

// Enumerate lists eligible inputs for mode in dir, non-recursive, sorted,
// matching extensions case-insensitively. In heic mode an image without a
// sidecar (.mov tried first, then .MOV) is excluded from the batch, not
// treated as a failure.
func Enumerate(mode convert.Mode, dir string) ([]convert.Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var inputs []convert.Input
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch mode {
		case convert.ModeLIVP:
			if fsutil.HasExt(path, ".livp") {
				inputs = append(inputs, convert.Input{Primary: path})
			}
		case convert.ModeJPG:
			if fsutil.HasExt(path, ".jpg", ".jpeg") {
				inputs = append(inputs, convert.Input{Primary: path})
			}
		case convert.ModeHEIC:
			if !fsutil.HasExt(path, ".heic") {
				continue
			}
			sidecar, ok := FindSidecar(path)
			if !ok {
				log.Printf("skipping %s: no matching .mov sidecar", path)
				continue
			}
			inputs = append(inputs, convert.Input{Primary: path, Sidecar: sidecar})
		}
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Primary < inputs[j].Primary })
	return inputs, nil
}

// FindSidecar locates the paired video for an image path, trying both
// common extension cases.
func FindSidecar(imagePath string) (string, bool) {
	base := imagePath[:len(imagePath)-len(filepath.Ext(imagePath))]
	for _, ext := range []string{".mov", ".MOV"} {
		candidate := base + ext
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// Run converts every eligible input under inputDir into outDir. Job outcomes
// are aggregated in enumeration order regardless of worker count.
func (o *Orchestrator) Run(ctx context.Context, mode convert.Mode, inputDir, outDir string) (Result, error) {
	inputs, err := Enumerate(mode, inputDir)
	if err != nil {
		return Result{}, err
	}
	if len(inputs) == 0 {
		log.Printf("no eligible %s inputs in %s", mode, inputDir)
		return Result{}, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, err
	}

	total := len(inputs)
	outcomes := make([]*Failure, total)

	type task struct {
		index int
		in    convert.Input
	}
	jobs := make(chan task)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				log.Printf("[%d/%d] processing %s", t.index+1, total, filepath.Base(t.in.Primary))
				if err := o.runOne(ctx, mode, t.in, outDir); err != nil {
					outcomes[t.index] = &Failure{Path: t.in.Primary, Message: err.Error()}
				}
			}
		}()
	}
	for i, in := range inputs {
		jobs <- task{index: i, in: in}
	}
	close(jobs)
	wg.Wait()

	var res Result
	for _, f := range outcomes {
		if f == nil {
			res.Success++
		} else {
			res.Failures = append(res.Failures, *f)
		}
	}
	return res, nil
}

// RunSingle converts one already-enumerated input with full job isolation,
// used by watch mode as files arrive.
func (o *Orchestrator) RunSingle(ctx context.Context, mode convert.Mode, in convert.Input, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return o.runOne(ctx, mode, in, outDir)
}

// runOne runs a single job inside its own temp dir, removed on every exit
// path. Panics from any stage are caught at the job boundary so one bad
// input cannot take the batch down.
func (o *Orchestrator) runOne(ctx context.Context, mode convert.Mode, in convert.Input, outDir string) (err error) {
	start := time.Now()
	var outPath string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
		o.record(mode, in, outPath, start, err)
	}()

	workDir, err := os.MkdirTemp("", "livemotion_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	outPath, err = o.jobs.Run(ctx, mode, in, outDir, workDir)
	return err
}

func (o *Orchestrator) record(mode convert.Mode, in convert.Input, outPath string, start time.Time, jobErr error) {
	rec := &history.Record{
		InputPath:  in.Primary,
		Mode:       string(mode),
		Status:     history.StatusSuccess,
		OutputPath: outPath,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if jobErr != nil {
		rec.Status = history.StatusFailed
		rec.Error = jobErr.Error()
	} else if md5, err := fsutil.MD5File(in.Primary, 0); err == nil {
		rec.InputMD5 = md5
	}
	if err := o.hist.Add(rec); err != nil {
		log.Printf("history write failed: %v", err)
	}
}
