package rewrite

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/SirZenith/lazyimg/internal/env"
	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/rewrite"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
)

const defaultDebounce = 300 * time.Millisecond

func subCmdWatch() *cli.Command {
	var target string

	return &cli.Command{
		Name:  "watch",
		Usage: "rewrite HTML files under a directory whenever they change",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "output directory, must not be inside watched directory",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "wait time after last change of a file before rewriting it",
				Value: defaultDebounce,
			},
			&cli.BoolFlag{
				Name:  "initial",
				Usage: "rewrite every existing file before start watching",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "dir",
				UsageText:   "<dir>",
				Destination: &target,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := env.Load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			w, err := newWatcher(
				rewrite.New(e.Lookup, e.Builder, e.Render, e.Config.RewritePolicy()),
				target,
				cmd.String("output"),
				cmd.Duration("debounce"),
			)
			if err != nil {
				return err
			}

			if cmd.Bool("initial") {
				tasks, err := collectTasks(w.root, w.outputDir)
				if err != nil {
					return err
				}
				runBatch(ctx, w.rewriter, tasks, options{jobCnt: e.Config.JobCount}).log()
			}

			return w.run(ctx)
		},
	}
}

type watcher struct {
	rewriter  *rewrite.Rewriter
	root      string
	outputDir string
	debounce  time.Duration

	fsWatcher *fsnotify.Watcher

	timerLock sync.Mutex
	timers    map[string]*time.Timer
	pending   sync.WaitGroup
}

func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func newWatcher(rewriter *rewrite.Rewriter, root, outputDir string, debounce time.Duration) (*watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid watch directory %s: %s", root, err)
	}

	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory %s: %s", outputDir, err)
	}

	if isSubPath(root, outputDir) {
		return nil, fmt.Errorf("output directory %s is inside watched directory %s", outputDir, root)
	}

	if debounce < 0 {
		debounce = defaultDebounce
	}

	return &watcher{
		rewriter:  rewriter,
		root:      root,
		outputDir: outputDir,
		debounce:  debounce,
		timers:    map[string]*time.Timer{},
	}, nil
}

// addRecursive adds `dir` and all directories under it to fsnotify watcher.
func (w *watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %s", path, err)
		}
		log.Debugf("watching folder: %s", path)

		return nil
	})
}

func (w *watcher) run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %s", err)
	}
	w.fsWatcher = fsWatcher
	defer fsWatcher.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	log.Infof("watching %s, output to %s", w.root, w.outputDir)

	defer w.pending.Wait()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watcher error: %s", err)
		}
	}
}

func (w *watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if stat, err := os.Stat(event.Name); err == nil && stat.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				log.Warn(err.Error())
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	base := filepath.Base(event.Name)
	if !common.IsHTMLFile(event.Name) || strings.HasPrefix(base, ".") {
		return
	}

	w.schedule(ctx, event.Name)
}

// schedule rewrites file after debounce time, restarting timer on every call.
func (w *watcher) schedule(ctx context.Context, path string) {
	w.timerLock.Lock()
	defer w.timerLock.Unlock()

	if timer, ok := w.timers[path]; ok && timer.Stop() {
		w.pending.Done()
	}

	w.pending.Add(1)

	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.pending.Done()

		w.timerLock.Lock()
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.timerLock.Unlock()

		w.process(ctx, path)
	})
	w.timers[path] = timer
}

func (w *watcher) stopTimers() {
	w.timerLock.Lock()
	defer w.timerLock.Unlock()

	for path, timer := range w.timers {
		if timer.Stop() {
			w.pending.Done()
		}
		delete(w.timers, path)
	}
}

func (w *watcher) process(ctx context.Context, path string) {
	relPath, err := filepath.Rel(w.root, path)
	if err != nil {
		log.Errorf("failed to resolve output path of %s: %s", path, err)
		return
	}

	t := task{input: path, output: filepath.Join(w.outputDir, relPath)}
	switch status, err := rewriteFile(ctx, w.rewriter, t); status {
	case resultFailed:
		log.Error(err.Error())
	case resultRewritten:
		log.Infof("rewritten: %s", t.output)
	default:
		log.Infof("copied unchanged: %s", t.output)
	}
}
