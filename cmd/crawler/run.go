package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/trust-weaver/internal/config"
	"github.com/alvmarrod/trust-weaver/internal/crawler"
	"github.com/alvmarrod/trust-weaver/internal/dnscheck"
	"github.com/alvmarrod/trust-weaver/internal/domain"
	"github.com/alvmarrod/trust-weaver/internal/emit"
	"github.com/alvmarrod/trust-weaver/internal/fetcher"
	"github.com/alvmarrod/trust-weaver/internal/memory"
	"github.com/alvmarrod/trust-weaver/internal/metrics"
	"github.com/alvmarrod/trust-weaver/internal/output"
	"github.com/alvmarrod/trust-weaver/internal/refdata"
	"github.com/alvmarrod/trust-weaver/internal/seeds"
	"github.com/alvmarrod/trust-weaver/internal/storage"
	"github.com/alvmarrod/trust-weaver/internal/version"
)

func run(cfg *config.Config) error {
	logrus.Infof("Trust Weaver v%s starting...", version.Version)

	tables, err := refdata.Load(cfg.ReferenceDataPath)
	if err != nil {
		return err
	}

	var rule domain.Rule = domain.NewCountryRule(tables.CountrySet())
	if cfg.BaseDomainRule == config.RulePublicSuffix {
		rule = domain.PublicSuffixRule{}
	}
	normalizer := domain.NewNormalizer(rule)

	roots, err := crawlRoots(cfg, normalizer)
	if err != nil {
		return err
	}

	// An existing run directory is never reused
	startTime := time.Now()
	runDir, err := output.CreateRunDir(cfg.OutputRoot, cfg.RunName(startTime))
	if err != nil {
		return err
	}

	logFile, err := runDir.OpenLog()
	if err != nil {
		return err
	}
	defer logFile.Close()
	logrus.SetOutput(io.MultiWriter(os.Stderr, logFile))
	defer logrus.SetOutput(os.Stderr)

	logrus.Infof("Configuration loaded: root=%s, seeds=%d, workers=%d, rule=%s, output=%s",
		roots[0].URL(), len(roots)-1, cfg.ConcurrentWorkers, cfg.BaseDomainRule, runDir.Path)
	if cfg.SkipTLSVerify() {
		logrus.Warn("TLS certificate verification is disabled (insecure_skip_verify); fetched files are not authenticated")
	}

	sink, err := openSinks(cfg, runDir)
	if err != nil {
		return err
	}

	whois, err := output.OpenWhoisList(runDir.WhoisPath())
	if err != nil {
		sink.Close()
		return err
	}
	defer whois.Close()

	tracker := metrics.NewTracker()
	classifier := memory.NewClassifier(
		baseDomains(normalizer, tables.Vendors),
		baseDomains(normalizer, chainURLs(tables.MediaChains)),
	)
	graph := memory.NewGraph(classifier)

	f := fetcher.New(fetcher.Config{
		Variants:           cfg.FetchVariants,
		Resource:           cfg.ResourceName,
		Timeout:            cfg.RequestTimeout(),
		UserAgent:          cfg.UserAgent,
		InsecureSkipVerify: cfg.SkipTLSVerify(),
		MaxRedirects:       cfg.MaxRedirects,
		RequestsPerSecond:  cfg.RequestsPerSecond,
	}, output.NewArtifacts(runDir.Path, cfg.ResourceName), logrus.WithField("component", "fetcher"))

	opts := crawler.Options{
		Workers:    cfg.ConcurrentWorkers,
		Registrars: tables.Registrars,
		Graph:      graph,
		Metrics:    tracker,
		Whois:      whois,
	}
	if cfg.DNSServer != "" {
		opts.DNS = dnscheck.New(cfg.DNSServer, cfg.DNSTimeout())
	}
	c := crawler.NewCrawler(f, normalizer, sink, opts, logrus.WithField("component", "crawler"))

	metricsPath := runDir.Join(cfg.MetricsFile)

	// Setup signal handler: first signal cancels, second forces exit
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crawlDone := make(chan struct{})

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logrus.Infof("Received signal: %v, stopping after in-flight fetches", sig)
		cancel()

		sig, ok = <-sigChan
		if !ok {
			return
		}
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		logrus.Warn("Attempting emergency save...")
		// Give in-flight workers a moment to notice the cancellation
		select {
		case <-crawlDone:
		case <-time.After(2 * time.Second):
		}
		sink.Close()
		if err := flushGraph(cfg, runDir, graph); err != nil {
			logrus.Errorf("Emergency graph flush failed: %v", err)
		}
		if err := tracker.WriteToFile(metricsPath, metrics.ReasonForcedExit); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	}()

	// Start progress logger
	stopProgress := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	logrus.Infof("BEGIN: %s", roots[0].URL())
	terminationReason := metrics.ReasonQueueEmpty
	crawlErr := c.Crawl(ctx, roots...)
	close(crawlDone)
	switch {
	case errors.Is(crawlErr, crawler.ErrOutputFailed):
		terminationReason = metrics.ReasonOutputFailed
	case errors.Is(crawlErr, context.Canceled):
		terminationReason = metrics.ReasonSignal
	}

	logrus.Info("Initiating graceful shutdown...")
	logrus.Info("Step 1/5: Stopping progress logger...")
	close(stopProgress)
	wg.Wait()

	logrus.Info("Step 2/5: Closing relation files...")
	if err := sink.Close(); err != nil {
		logrus.Errorf("Failed to close sinks: %v", err)
	}

	logrus.Info("Step 3/5: Flushing in-memory graph to database...")
	if err := flushGraph(cfg, runDir, graph); err != nil {
		logrus.Errorf("Failed to flush memory graph: %v", err)
	}

	logrus.Info("Step 4/5: Writing final metrics...")
	logrus.Info("Final stats: " + tracker.LogProgress())
	logrus.Info("Attributes: " + tracker.AttributeSummary())
	if err := tracker.WriteToFile(metricsPath, terminationReason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", metricsPath)
	}

	logrus.Info("Step 5/5: Closing whois list and run log...")
	logrus.Infof("END: %s, run finished (%s) in %v", roots[0].URL(), terminationReason, time.Since(startTime).Round(time.Second))

	printSummary(os.Stdout, runDir, tracker.GetSnapshot(), terminationReason)
	if terminationReason == metrics.ReasonOutputFailed {
		return crawlErr
	}
	return nil
}

// crawlRoots normalizes the primary root followed by any seed domains
func crawlRoots(cfg *config.Config, n *domain.Normalizer) ([]domain.Name, error) {
	root := n.Normalize(cfg.RootURL)
	if root.IsZero() || root.IsOpaque() {
		return nil, fmt.Errorf("invalid root domain %q", cfg.RootURL)
	}
	roots := []domain.Name{root}

	if cfg.SeedsPath == "" {
		return roots, nil
	}

	list, err := seeds.Load(cfg.SeedsPath)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		name := n.Normalize(s)
		if name.IsZero() || name.IsOpaque() {
			logrus.Warnf("Skipping unusable seed %q", s)
			continue
		}
		roots = append(roots, name)
	}
	return roots, nil
}

// openSinks creates the CSV relation files and, when configured, the
// Elasticsearch sink. An unreachable cluster is logged and skipped.
func openSinks(cfg *config.Config, runDir *output.RunDir) (emit.Sink, error) {
	csvSink, err := emit.NewCSVSink(runDir.EdgesPath(), runDir.RedirectsPath(), runDir.ErrorsPath())
	if err != nil {
		return nil, err
	}
	sinks := emit.Multi{csvSink}

	if cfg.ElasticURL != "" {
		es, err := emit.NewElasticSink(emit.ElasticConfig{
			URL:      cfg.ElasticURL,
			Username: cfg.ElasticUsername,
			Password: cfg.ElasticPassword,
			Index:    cfg.ElasticIndex,
			RunName:  runDir.Name,
		}, logrus.WithField("component", "elastic"))
		if err != nil {
			logrus.Warnf("Elasticsearch sink disabled: %v", err)
		} else {
			logrus.Infof("Indexing relations into %s/%s", cfg.ElasticURL, cfg.ElasticIndex)
			sinks = append(sinks, es)
		}
	}
	return sinks, nil
}

// flushGraph writes the graph snapshot to the configured database
func flushGraph(cfg *config.Config, runDir *output.RunDir, graph *memory.Graph) error {
	if cfg.DBDriver == "none" {
		logrus.Info("Database snapshot disabled")
		return nil
	}

	dsn := cfg.DBDSN
	if cfg.DBDriver == storage.DriverSQLite && dsn == "" {
		dsn = runDir.DBPath()
	}

	store, err := storage.NewStore(cfg.DBDriver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return graph.Flush(ctx, store, logrus.WithField("component", "storage"))
}

// baseDomains normalizes reference-table entries to base domains
func baseDomains(n *domain.Normalizer, entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if name := n.Normalize(e); !name.IsZero() && !name.IsOpaque() {
			out = append(out, name.Base)
		}
	}
	return out
}

func chainURLs(chains map[string]string) []string {
	urls := make([]string, 0, len(chains))
	for _, u := range chains {
		urls = append(urls, u)
	}
	return urls
}
