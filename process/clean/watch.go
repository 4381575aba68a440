package clean

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// settle is how long a file must stay untouched before it is processed, so
// images still being copied in are not read half-written.
const settle = 300 * time.Millisecond

// Watch processes images created in the target directory until ctx is done.
// Images already in the directory that this runner has not processed yet are
// queued as well, so Run followed by Watch misses nothing.
func (r *Runner) Watch(ctx context.Context) error {
	if err := r.ensureDirs(); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(r.opts.TargetDir); err != nil {
		return fmt.Errorf("watch %s: %w", r.opts.TargetDir, err)
	}
	log.Info().Str("dir", r.opts.TargetDir).Msg("watching (debounced)")

	fileCh := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sum := r.runWorkerPool(ctx, fileCh)
		log.Info().Int("images", sum.Total).Int("failed", sum.Failed).Msg("watch stopped")
	}()
	defer func() {
		close(fileCh)
		<-done
	}()

	pending := map[string]time.Time{}
	// images that arrived between Run's scan and w.Add produce no event
	files, err := listImageFiles(r.opts.TargetDir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", r.opts.TargetDir, err)
	}
	for _, name := range files {
		if !r.processed(name) {
			pending[name] = time.Now()
		}
	}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isSupportedExt(name) {
				continue
			}
			pending[name] = time.Now()
		case now := <-ticker.C:
			for name, t := range pending {
				if now.Sub(t) < settle {
					continue
				}
				delete(pending, name)
				select {
				case fileCh <- name:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}
