package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"logistria/internal/domain"
	"logistria/internal/etl"
)

// ── Watchers (cron + file_watch + inbox) ──────────────────

const (
	// debounce is how long a file must stay quiet before it is imported.
	debounce = 500 * time.Millisecond
	// inboxRetry is the wait before an inbox file whose collection is
	// locked by another instance is tried again.
	inboxRetry = 5 * time.Second
)

// watcherSet owns the scheduler and file watcher built by RestartWatchers.
type watcherSet struct {
	mu sync.Mutex
	// ctx is the lifetime of triggered imports, set by Start.
	ctx         context.Context
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

func (w *watcherSet) stopLocked() {
	if w.watchCancel != nil {
		w.watchCancel()
		w.watchCancel = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
	if w.cronSched != nil {
		w.cronSched.Stop()
		w.cronSched = nil
	}
}

// Start runs scheduled, file-watch and inbox imports until ctx is done.
// Before Start, job changes are saved but nothing is triggered.
func (s *ImportService) Start(ctx context.Context) {
	s.watchers.mu.Lock()
	s.watchers.ctx = ctx
	s.watchers.mu.Unlock()
	s.RestartWatchers()
}

// Stop tears down all watchers and schedulers.
func (s *ImportService) Stop() {
	s.watchers.mu.Lock()
	defer s.watchers.mu.Unlock()
	s.watchers.stopLocked()
	s.watchers.ctx = nil
}

// RestartWatchers tears down the current watcher/cron and rebuilds them
// from the saved jobs and the inbox directory. It does nothing before Start.
func (s *ImportService) RestartWatchers() {
	s.watchers.mu.Lock()
	defer s.watchers.mu.Unlock()
	s.watchers.stopLocked()

	ctx := s.watchers.ctx
	if ctx == nil || ctx.Err() != nil {
		return
	}

	var jobs []domain.ImportJob
	if s.store != nil {
		var err error
		jobs, err = s.store.ListEnabledTriggeredJobs()
		if err != nil {
			s.log.WithError(err).Error("watcher: failed to list jobs")
			return
		}
	}

	// ── Cron jobs ──
	c := cron.New()
	scheduled := 0
	for _, j := range jobs {
		if j.TriggerType != domain.TriggerSchedule || j.TriggerConfig == "" {
			continue
		}
		jid := j.ID
		_, err := c.AddFunc(j.TriggerConfig, func() {
			s.log.WithField("job", jid).Info("cron: running job")
			if _, err := s.RunJob(ctx, jid); err != nil {
				s.log.WithField("job", jid).WithError(err).Warn("cron: job failed")
			}
		})
		if err != nil {
			s.log.WithFields(logrus.Fields{"job": jid, "expr": j.TriggerConfig}).WithError(err).Warn("cron: invalid expression")
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.watchers.cronSched = c
		s.log.WithField("jobs", scheduled).Info("cron: scheduled")
	}

	// ── File watchers ──
	pathToJob := make(map[string]string)
	for _, j := range jobs {
		if j.TriggerType != domain.TriggerFileWatch {
			continue
		}
		absPath, err := filepath.Abs(j.FilePath)
		if err != nil {
			s.log.WithField("path", j.FilePath).WithError(err).Warn("watcher: bad path")
			continue
		}
		pathToJob[absPath] = j.ID
	}

	inbox := ""
	if s.inboxDir != "" {
		if abs, err := filepath.Abs(s.inboxDir); err == nil {
			if err := os.MkdirAll(abs, 0755); err != nil {
				s.log.WithField("dir", abs).WithError(err).Warn("inbox: cannot create directory")
			} else {
				inbox = abs
			}
		}
	}

	if len(pathToJob) == 0 && inbox == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.WithError(err).Error("watcher: failed to create watcher")
		return
	}
	s.watchers.watcher = watcher

	watchedDirs := make(map[string]bool)
	addDir := func(dir string) {
		if watchedDirs[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			s.log.WithField("dir", dir).WithError(err).Warn("watcher: failed to watch dir")
			return
		}
		watchedDirs[dir] = true
	}
	for p := range pathToJob {
		addDir(filepath.Dir(p))
	}
	if inbox != "" {
		addDir(inbox)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchers.watchCancel = cancel

	inboxQueue := make(chan string, 64)
	if inbox != "" {
		go s.inboxWorker(watchCtx, inboxQueue)
	}

	go func() {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)

				var fire func()
				if jobID, ok := pathToJob[absPath]; ok {
					fire = func() {
						s.log.WithFields(logrus.Fields{"path": absPath, "job": jobID}).Info("watcher: file changed, running job")
						if _, err := s.RunJob(watchCtx, jobID); err != nil {
							s.log.WithField("job", jobID).WithError(err).Warn("watcher: run failed")
						}
					}
				} else if inbox != "" && filepath.Dir(absPath) == inbox {
					fire = func() { enqueue(watchCtx, inboxQueue, absPath) }
				} else {
					continue
				}

				if t, exists := timers[absPath]; exists {
					t.Stop()
				}
				timers[absPath] = time.AfterFunc(debounce, fire)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.WithError(err).Warn("watcher: error")
			}
		}
	}()

	s.log.WithFields(logrus.Fields{"files": len(pathToJob), "inbox": inbox}).Info("watcher: started")
}

// InboxTarget resolves the target of a dropped file from its name:
// "<target>.<ext>" or "<target>__<anything>.<ext>".
func InboxTarget(fileName string) (string, bool) {
	base := filepath.Base(fileName)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(name, "__"); i >= 0 {
		name = name[:i]
	}
	if _, err := etl.LookupTarget(name); err != nil {
		return "", false
	}
	return name, true
}

func enqueue(ctx context.Context, queue chan<- string, path string) {
	select {
	case queue <- path:
	case <-ctx.Done():
	}
}

// inboxWorker imports queued inbox files one at a time, so files dropped
// together never compete for the inbox surface.
func (s *ImportService) inboxWorker(ctx context.Context, queue chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-queue:
			if s.importInboxFile(ctx, path) {
				time.AfterFunc(inboxRetry, func() { enqueue(ctx, queue, path) })
			}
		}
	}
}

// importInboxFile imports a dropped file and moves it to processed/ or
// failed/ next to it. It reports whether the file should be retried.
func (s *ImportService) importInboxFile(ctx context.Context, path string) (retry bool) {
	logger := s.log.WithField("path", path)
	target, ok := InboxTarget(path)
	if !ok {
		logger.Debug("inbox: ignoring file with no matching target")
		return false
	}
	if _, err := etl.SourceFor(path); err != nil {
		logger.WithError(err).Warn("inbox: unsupported file")
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		logger.WithError(err).Warn("inbox: open failed")
		return false
	}
	_, runErr := s.Import(ctx, SurfaceInbox, etl.ImportRequest{Target: target, FileName: filepath.Base(path), Body: f})
	f.Close()

	dest := "processed"
	if runErr != nil {
		if errors.Is(runErr, ErrImportInFlight) {
			logger.Info("inbox: collection busy, retrying later")
			return true
		}
		dest = "failed"
	}
	moveTo := filepath.Join(filepath.Dir(path), dest)
	if err := os.MkdirAll(moveTo, 0755); err != nil {
		logger.WithError(err).Warn("inbox: cannot create " + dest)
		return false
	}
	stamped := time.Now().UTC().Format("20060102T150405") + "-" + filepath.Base(path)
	if err := os.Rename(path, filepath.Join(moveTo, stamped)); err != nil {
		logger.WithError(err).Warn("inbox: move failed")
	}
	return false
}
