package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/trust-weaver/internal/config"
	"github.com/alvmarrod/trust-weaver/internal/version"
)

// Command-line overrides for the config file
type flags struct {
	configPath string
	seedsPath  string
	outputRoot string
	workers    int
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:     "trust-weaver [root-domain]",
		Short:   "Crawl trust.txt files and build the trust graph",
		Long:    `Fetch the trust.txt file of a root domain, record every relationship it declares and follow the symmetric ones until the reachable graph is exhausted.`,
		Version: version.Version,
		Args:    cobra.MaximumNArgs(1),
		Example: `  trust-weaver www.journallist.net
  trust-weaver --seeds publishers.xlsx --workers 4 example.com`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f, args)
			if err != nil {
				return err
			}
			if f.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "config.json", "path to the JSON config file")
	cmd.Flags().StringVar(&f.seedsPath, "seeds", "", "candidate domain list crawled after the root (csv, xlsx, yaml, json or txt)")
	cmd.Flags().StringVarP(&f.outputRoot, "output", "o", "", "directory in which the run directory is created")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "number of concurrent fetch workers")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command, f flags, args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	if len(args) == 1 {
		cfg.RootURL = args[0]
	}
	if cmd.Flags().Changed("seeds") {
		cfg.SeedsPath = f.seedsPath
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputRoot = f.outputRoot
	}
	if cmd.Flags().Changed("workers") {
		cfg.ConcurrentWorkers = f.workers
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newRootCmd().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
