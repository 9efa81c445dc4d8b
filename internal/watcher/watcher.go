// Package watcher keeps converting files as they arrive in the input
// directory, after the initial batch has run. Watching is non-recursive,
// matching batch enumeration.
package watcher

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/qiyuan-z/livemotion/internal/batch"
	"github.com/qiyuan-z/livemotion/internal/convert"
	"github.com/qiyuan-z/livemotion/internal/fsutil"
	"github.com/qiyuan-z/livemotion/internal/history"
)

type Watcher struct {
	orch           *batch.Orchestrator
	hist           *history.Store
	mode           convert.Mode
	inputDir       string
	outDir         string
	stabilityDelay time.Duration
	md5ChunkSize   int64
	w              *fsnotify.Watcher

	mu   sync.Mutex
	seen map[string]struct{} // md5 dedup when history is disabled
}

func New(orch *batch.Orchestrator, hist *history.Store, mode convert.Mode, inputDir, outDir string, stabilityDelay time.Duration, md5ChunkSize int64) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(inputDir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{
		orch:           orch,
		hist:           hist,
		mode:           mode,
		inputDir:       inputDir,
		outDir:         outDir,
		stabilityDelay: stabilityDelay,
		md5ChunkSize:   md5ChunkSize,
		w:              w,
		seen:           make(map[string]struct{}),
	}, nil
}

func (wr *Watcher) Close() error { return wr.w.Close() }

// Run blocks handling events until ctx is cancelled.
func (wr *Watcher) Run(ctx context.Context) error {
	log.Printf("watching %s for new %s inputs", wr.inputDir, wr.mode)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wr.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				wr.handle(ctx, ev.Name)
			}
		case err, ok := <-wr.w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func (wr *Watcher) handle(ctx context.Context, path string) {
	in, ok := wr.eligible(path)
	if !ok {
		return
	}
	go func() {
		if err := fsutil.WaitStable(in.Primary, wr.stabilityDelay); err != nil {
			return
		}
		if wr.alreadyConverted(in.Primary) {
			log.Printf("skipping %s: identical content already converted", in.Primary)
			return
		}
		if err := wr.orch.RunSingle(ctx, wr.mode, in, wr.outDir); err != nil {
			log.Printf("watch conversion failed for %s: %v", in.Primary, err)
		}
	}()
}

// eligible maps an event path onto a complete input. In heic mode either
// side of the pair may arrive last, so a .mov event resolves back to its
// image.
func (wr *Watcher) eligible(path string) (convert.Input, bool) {
	switch wr.mode {
	case convert.ModeLIVP:
		if fsutil.HasExt(path, ".livp") {
			return convert.Input{Primary: path}, true
		}
	case convert.ModeJPG:
		if fsutil.HasExt(path, ".jpg", ".jpeg") {
			return convert.Input{Primary: path}, true
		}
	case convert.ModeHEIC:
		if fsutil.HasExt(path, ".heic") {
			if sidecar, ok := batch.FindSidecar(path); ok {
				return convert.Input{Primary: path, Sidecar: sidecar}, true
			}
			return convert.Input{}, false
		}
		if fsutil.HasExt(path, ".mov") {
			base := strings.TrimSuffix(path, filepath.Ext(path))
			for _, ext := range []string{".heic", ".HEIC"} {
				if size, err := fsutil.FileSize(base + ext); err == nil && size > 0 {
					return convert.Input{Primary: base + ext, Sidecar: path}, true
				}
			}
		}
	}
	return convert.Input{}, false
}

func (wr *Watcher) alreadyConverted(path string) bool {
	md5, err := fsutil.MD5File(path, wr.md5ChunkSize)
	if err != nil {
		return false
	}
	if seen, err := wr.hist.SeenSuccess(md5, string(wr.mode)); err == nil && seen {
		return true
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if _, ok := wr.seen[md5]; ok {
		return true
	}
	wr.seen[md5] = struct{}{}
	return false
}
