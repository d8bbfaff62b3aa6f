package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/crawlfrontier/internal/config"
	"github.com/jonesrussell/crawlfrontier/internal/content"
	"github.com/jonesrussell/crawlfrontier/internal/errpkg"
	"github.com/jonesrussell/crawlfrontier/internal/frontierstore"
	"github.com/jonesrussell/crawlfrontier/internal/htmlfetch"
	"github.com/jonesrussell/crawlfrontier/internal/htmlparse"
	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/logger"
	"github.com/jonesrussell/crawlfrontier/internal/metrics"
	"github.com/jonesrussell/crawlfrontier/internal/politeness"
	"github.com/jonesrussell/crawlfrontier/internal/scheduler"
	"github.com/jonesrussell/crawlfrontier/internal/seed"
	"github.com/jonesrussell/crawlfrontier/internal/worker"
	"github.com/jonesrussell/crawlfrontier/internal/writer"
)

// idleCheckInterval and idleChecksBeforeExit govern the run loop's
// idle-shutdown watcher: spec.md section 5 leaves the decision to
// terminate to "a supervisor"; this CLI's minimal supervisor declares the
// crawl complete once both the ready queue and the active set have been
// empty for several consecutive checks in a row, which rules out the
// narrow window where every domain is momentarily mid-claim.
const (
	idleCheckInterval    = 2 * time.Second
	idleChecksBeforeExit = 3
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the frontier & politeness scheduler against a seed list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runE(cmd)
		},
	}

	config.BindFlags(cmd)
	return cmd
}

func runE(cmd *cobra.Command) error {
	// Reuse the package-wide viper instance root.go configured in init
	// (AutomaticEnv + the "-"->"_" env key replacer) so env vars named after
	// the flags (e.g. SEED_FILE for --seed-file, no prefix) resolve the same
	// way regardless of which subcommand runs.
	v := viper.GetViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errpkg.WrapWithContext(err, "run: bind flags")
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return errpkg.WrapWithContext(err, "run: build logger")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New(nil)
	startMetricsServer(cfg.MetricsAddr, log)

	idx, err := index.New(ctx, index.Config{Addr: cfg.RedisAddr})
	if err != nil {
		return errpkg.WrapWithContext(err, "run: index unreachable")
	}
	defer idx.Close()

	store, err := frontierstore.New(cfg.DataDir)
	if err != nil {
		return errpkg.WrapWithContextf(err, "run: data dir %q unwritable", cfg.DataDir)
	}

	contentWriter, err := content.New(cfg.DataDir)
	if err != nil {
		return errpkg.WrapWithContextf(err, "run: data dir %q unwritable", cfg.DataDir)
	}

	if cfg.ExcludeFile != "" {
		domains, loadErr := politeness.LoadExclusions(cfg.ExcludeFile)
		if loadErr != nil {
			return errpkg.WrapWithContext(loadErr, "run")
		}
		if applyErr := politeness.ApplyExclusions(ctx, idx, domains); applyErr != nil {
			return errpkg.WrapWithContext(applyErr, "run")
		}
		log.Info("loaded exclusions", "count", len(domains))
	}

	userAgent := htmlfetch.UserAgent(cfg.Email)

	oracle := politeness.New(idx, politeness.Config{
		UserAgent:     userAgent,
		MinCrawlDelay: cfg.MinCrawlDelay,
		OnRobotsFetch: func(result string) { m.RobotsFetchTotal.WithLabelValues(result).Inc() },
	}, log.WithComponent("politeness"))

	sched := scheduler.New(idx, store, oracle, log.WithComponent("scheduler"), m)
	w := writer.New(idx, store, writer.Config{SeededURLsOnly: false}, log.WithComponent("writer"), m)

	if !cfg.Resume {
		seeds, seedErr := seed.Load(cfg.SeedFile)
		if seedErr != nil {
			return errpkg.WrapWithContext(seedErr, "run: seed file unreadable")
		}
		subs := make([]writer.Submission, len(seeds))
		for i, s := range seeds {
			subs[i] = writer.Submission{URL: s, SourceDepth: -1}
		}
		added, addErr := w.AddURLs(ctx, subs)
		if addErr != nil {
			return errpkg.WrapWithContext(addErr, "run: seed urls")
		}
		log.Info("seeded frontier", "submitted", len(seeds), "added", added)
	}

	if cfg.SeededURLsOnly {
		w.Lock()
		log.Info("seeded-urls-only: frontier writer will drop all further discoveries")
	}

	pool := worker.New(worker.Config{WorkerCount: cfg.MaxWorkers}, worker.Deps{
		Scheduler: sched,
		Writer:    w,
		Fetcher:   htmlfetch.New(htmlfetch.Config{UserAgent: userAgent}),
		Parser:    htmlparse.New(),
		Content:   contentWriter,
		Index:     idx,
		Log:       log.WithComponent("worker"),
		Metrics:   m,
	})

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go watchForIdle(runCtx, runCancel, idx, log)

	return pool.Run(runCtx)
}

// watchForIdle cancels runCtx once the ready queue and active set have
// both been empty for idleChecksBeforeExit consecutive polls, signaling
// the crawl completed (spec.md section 6: "0 = completed ... empty
// frontier reached").
func watchForIdle(ctx context.Context, cancel context.CancelFunc, idx *index.Index, log logger.Interface) {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()

	consecutiveIdle := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ready, err := idx.ReadyCount(ctx)
		if err != nil {
			continue
		}
		active, err := idx.ActiveCount(ctx)
		if err != nil {
			continue
		}

		if ready == 0 && active == 0 {
			consecutiveIdle++
		} else {
			consecutiveIdle = 0
		}

		if consecutiveIdle >= idleChecksBeforeExit {
			log.Info("frontier empty, crawl complete")
			cancel()
			return
		}
	}
}

func startMetricsServer(addr string, log logger.Interface) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
}
