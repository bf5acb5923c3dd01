package cli

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/protoprune/pkg/httputil"
	"github.com/platinummonkey/protoprune/pkg/loader"
	"github.com/platinummonkey/protoprune/pkg/observability"
	"github.com/platinummonkey/protoprune/pkg/protoprint"
)

func newWatchCommand(root *rootOptions, version string) *cobra.Command {
	opts := &ruleOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the prune whenever a source changes and serve the result over HTTP",
		Long: `Watch prunes once, then again each time a .proto file below a source root changes
and, with watch.schedule, on a cron schedule. It serves:

  /healthz        readiness, 503 until a run succeeded
  /healthz/live   liveness
  /metrics        Prometheus metrics
  /types          types and services retained by the last successful run
  /unused         roots and prunes of the last run that matched nothing
  /files/{path}   a retained file printed as .proto source`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd, root, version, opts.apply(cmd))
			if err != nil {
				return err
			}
			defer a.close()
			return runWatch(cmd.Context(), a, version, opts.dryRun)
		},
	}
	opts.register(cmd)
	return cmd
}

func runWatch(ctx context.Context, a *app, version string, dryRun bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner := a.runner()
	shutdownFuncs := []observability.ShutdownFunc{}

	var redisClient *redis.Client
	if a.cfg.Cache.RedisURL != "" {
		client, err := loader.NewRedisClient(ctx, a.cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		redisClient = client
		runner.SetCache(loader.ObservedCache(loader.NewRedisCache(client, a.cfg.Cache.TTL, a.log), a.metrics.RecordCacheLookup))
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error { return client.Close() })
	} else {
		cache, err := loader.NewLRUCache(a.cfg.Watch.CacheSize)
		if err != nil {
			return err
		}
		runner.SetCache(loader.ObservedCache(cache, a.metrics.RecordCacheLookup))
	}

	health := observability.NewHealthChecker(version, redisClient)
	w := newWatcher(runner, health, a.log, a.cfg.Watch.Delay, dryRun)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	shutdownFuncs = append(shutdownFuncs, func(context.Context) error { return fsw.Close() })
	for _, dir := range a.cfg.SourceDirs() {
		if err := watchTree(fsw, dir); err != nil {
			fsw.Close()
			return err
		}
	}

	if a.cfg.Watch.Schedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(a.cfg.Watch.Schedule, w.Queue); err != nil {
			fsw.Close()
			return err
		}
		scheduler.Start()
		shutdownFuncs = append(shutdownFuncs, func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		})
	}

	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, health)
	router.Handle("/metrics", observability.MetricsHandler(a.registry)).Methods(http.MethodGet)
	w.routes(router)
	router.Use(observability.HTTPMetricsMiddleware(a.metrics))

	server := &http.Server{
		Addr: a.cfg.Watch.Listen,
		Handler: otelhttp.NewHandler(httputil.Chain(
			httputil.RequestIDMiddleware,
			httputil.RecoveryMiddleware(a.log),
			httputil.LoggingMiddleware(a.log),
		)(router), "protoprune"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdown := observability.NewShutdownManager(a.log, server, 30*time.Second)
	for _, fn := range shutdownFuncs {
		shutdown.RegisterShutdownFunc(fn)
	}

	serverErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(a.log, "watch server")
		a.log.Infof("Serving on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		defer observability.RecoverPanic(a.log, "file watcher")
		w.watchEvents(ctx, fsw)
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		w.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("Shutting down")
	case err = <-serverErr:
		a.log.WithError(err).Error("HTTP server failed")
		cancel()
	}
	if shutdownErr := shutdown.Shutdown(); shutdownErr != nil {
		a.log.WithError(shutdownErr).Error("Shutdown failed")
	}
	<-loopDone
	return err
}

// watcher re-runs the prune after file events settle for delay and keeps the last
// successful report.
type watcher struct {
	runner  *Runner
	health  *observability.HealthChecker
	log     logrus.FieldLogger
	delay   time.Duration
	dryRun  bool
	trigger chan struct{}

	mu   sync.RWMutex
	last *Report
}

func newWatcher(runner *Runner, health *observability.HealthChecker, log logrus.FieldLogger, delay time.Duration, dryRun bool) *watcher {
	return &watcher{
		runner:  runner,
		health:  health,
		log:     log,
		delay:   delay,
		dryRun:  dryRun,
		trigger: make(chan struct{}, 1),
	}
}

// Queue requests a run once no further request arrives for the delay.
func (w *watcher) Queue() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run prunes once, then on every settled request until ctx is done.
func (w *watcher) Run(ctx context.Context) {
	w.runOnce(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.trigger:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.delay)
			fire = timer.C
		case <-fire:
			fire = nil
			w.runOnce(ctx)
		}
	}
}

func (w *watcher) runOnce(ctx context.Context) {
	defer observability.RecoverPanic(w.log, "prune run")

	report, err := w.runner.Prune(ctx, w.dryRun)
	w.health.RecordRun(time.Now(), err)
	if err != nil {
		w.log.WithError(err).Error("Prune failed, keeping the previous result")
		return
	}
	w.mu.Lock()
	w.last = report
	w.mu.Unlock()
}

// Last returns the last successful report, or nil.
func (w *watcher) Last() *Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

func (w *watcher) watchEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(fsw, event.Name); err != nil {
						w.log.WithError(err).Warnf("Failed to watch %s", event.Name)
					}
					w.Queue()
					continue
				}
			}
			if isProtoEvent(event) {
				w.log.WithField("file", event.Name).Debug("Source changed")
				w.Queue()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

// isProtoEvent reports whether event changes the set or content of .proto files.
func isProtoEvent(event fsnotify.Event) bool {
	if filepath.Ext(event.Name) != ".proto" {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// watchTree adds root and every directory below it to fsw.
func watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// typesResponse is the body of /types.
type typesResponse struct {
	RunID    string   `json:"run_id"`
	Types    []string `json:"types"`
	Services []string `json:"services"`
	Files    []string `json:"files"`
}

// unusedResponse is the body of /unused.
type unusedResponse struct {
	RunID  string   `json:"run_id"`
	Roots  []string `json:"roots"`
	Prunes []string `json:"prunes"`
}

func (w *watcher) routes(router *mux.Router) {
	router.HandleFunc("/types", w.handleTypes).Methods(http.MethodGet)
	router.HandleFunc("/unused", w.handleUnused).Methods(http.MethodGet)
	router.HandleFunc("/files/{path:.+}", w.handleFile).Methods(http.MethodGet)
}

func (w *watcher) handleTypes(rw http.ResponseWriter, r *http.Request) {
	report := w.Last()
	if report == nil {
		httputil.WriteUnavailable(rw, "no successful run yet")
		return
	}

	pkg := httputil.ParseQueryString(r, "package", "")
	resp := typesResponse{RunID: report.RunID, Types: []string{}, Services: []string{}, Files: []string{}}
	s := report.Result.Schema
	for _, t := range s.Types() {
		if pkg == "" || hasPackagePrefix(t.String(), pkg) {
			resp.Types = append(resp.Types, t.String())
		}
	}
	for _, svc := range s.Services() {
		if pkg == "" || hasPackagePrefix(svc.Type.String(), pkg) {
			resp.Services = append(resp.Services, svc.Type.String())
		}
	}
	for _, f := range s.Files() {
		if report.Loaded.IsSource(f.Path()) && !f.IsEmpty() {
			resp.Files = append(resp.Files, f.Path())
		}
	}
	sort.Strings(resp.Types)
	sort.Strings(resp.Services)
	sort.Strings(resp.Files)
	_ = httputil.WriteSuccess(rw, resp)
}

func hasPackagePrefix(name, pkg string) bool {
	return len(name) > len(pkg) && name[:len(pkg)] == pkg && name[len(pkg)] == '.'
}

func (w *watcher) handleUnused(rw http.ResponseWriter, r *http.Request) {
	report := w.Last()
	if report == nil {
		httputil.WriteUnavailable(rw, "no successful run yet")
		return
	}
	resp := unusedResponse{RunID: report.RunID, Roots: []string{}, Prunes: []string{}}
	resp.Roots = append(resp.Roots, report.Result.UnusedRoots...)
	resp.Prunes = append(resp.Prunes, report.Result.UnusedPrunes...)
	_ = httputil.WriteSuccess(rw, resp)
}

func (w *watcher) handleFile(rw http.ResponseWriter, r *http.Request) {
	report := w.Last()
	if report == nil {
		httputil.WriteUnavailable(rw, "no successful run yet")
		return
	}
	path, err := httputil.ParsePathString(r, "path")
	if err != nil {
		httputil.WriteErrorMessage(rw, http.StatusBadRequest, err.Error())
		return
	}
	f := report.Result.Schema.ProtoFile(path)
	if f == nil || f.IsEmpty() {
		httputil.WriteNotFoundError(rw, "no retained file "+path)
		return
	}
	httputil.WriteText(rw, http.StatusOK, protoprint.NewPrinter(report.Result.Schema).String(f))
}
