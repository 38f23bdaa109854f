// Package watch turns a drop folder into evidence intake. Files that appear
// within one debounce window form a batch; a batch that is handled
// successfully is moved out of the way into the ingested subfolder.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/custodian/internal/evidence"
	"github.com/user/custodian/internal/logging"
)

// IngestedDir is the subfolder handled files are moved into.
const IngestedDir = ".ingested"

// Batch is a set of files picked up together.
type Batch struct {
	Paths   []string
	Intakes []evidence.Intake
}

// Handler consumes one batch. Returning an error leaves the files in place
// for the next flush.
type Handler func(ctx context.Context, b Batch) error

// Folder watches one directory for new evidence files.
type Folder struct {
	dir      string
	debounce time.Duration
	handle   Handler
	log      *slog.Logger
}

// New creates a Folder over dir.
func New(dir string, debounce time.Duration, h Handler) *Folder {
	return &Folder{dir: dir, debounce: debounce, handle: h, log: logging.New("watch")}
}

// LoadIntake reads a file into an Intake. The MIME type is guessed from the
// extension and the capture time is the file's modification time.
func LoadIntake(path string) (evidence.Intake, error) {
	info, err := os.Stat(path)
	if err != nil {
		return evidence.Intake{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return evidence.Intake{}, err
	}
	defer f.Close()

	mimeType := evidence.DetectMIME(path)
	content, err := evidence.ReadContent(f, mimeType)
	if err != nil {
		return evidence.Intake{}, fmt.Errorf("read %s: %w", path, err)
	}
	return evidence.Intake{
		Filename:   filepath.Base(path),
		MimeType:   mimeType,
		Content:    content,
		CapturedAt: info.ModTime(),
	}, nil
}

// pending lists regular, non-hidden files in the folder, sorted by name.
func (f *Folder) pending() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(f.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Flush hands every pending file to the handler as one batch and returns
// the number of files ingested.
func (f *Folder) Flush(ctx context.Context) (int, error) {
	paths, err := f.pending()
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", f.dir, err)
	}
	if len(paths) == 0 {
		return 0, nil
	}

	b := Batch{Paths: paths, Intakes: make([]evidence.Intake, 0, len(paths))}
	for _, p := range paths {
		in, err := LoadIntake(p)
		if err != nil {
			return 0, err
		}
		b.Intakes = append(b.Intakes, in)
	}

	if err := f.handle(ctx, b); err != nil {
		return 0, err
	}
	if err := f.archive(paths); err != nil {
		return len(paths), err
	}
	return len(paths), nil
}

func (f *Folder) archive(paths []string) error {
	dest := filepath.Join(f.dir, IngestedDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	stamp := time.Now().UTC().Format("20060102T150405")
	for _, p := range paths {
		target := filepath.Join(dest, filepath.Base(p))
		if _, err := os.Stat(target); err == nil {
			target = filepath.Join(dest, stamp+"-"+filepath.Base(p))
		}
		if err := os.Rename(p, target); err != nil {
			return fmt.Errorf("archive %s: %w", p, err)
		}
	}
	return nil
}

// Run flushes files already present, then watches for new ones until ctx
// is done.
func (f *Folder) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}
	f.flush(ctx)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			if !pending {
				timer.Reset(f.debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("watch error", "error", err)
		case <-timer.C:
			pending = false
			f.flush(ctx)
		}
	}
}

func (f *Folder) flush(ctx context.Context) {
	n, err := f.Flush(ctx)
	if err != nil {
		f.log.Error("ingest batch failed", "dir", f.dir, "error", err)
		return
	}
	if n > 0 {
		f.log.Info("ingested batch", "dir", f.dir, "files", n)
	}
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return true
	}
	return event.Op&(fsnotify.Create|fsnotify.Write) == 0
}
