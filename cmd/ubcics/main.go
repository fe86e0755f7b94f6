package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/minjunminji/ubcxlsxtoics/internal/config"
	"github.com/minjunminji/ubcxlsxtoics/internal/convert"
	"github.com/minjunminji/ubcxlsxtoics/internal/holiday"
	"github.com/minjunminji/ubcxlsxtoics/internal/ics"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
	"github.com/minjunminji/ubcxlsxtoics/internal/schedule"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string

	// conf is populated by the root PersistentPreRunE.
	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "ubcics",
	Short:         "Converts a UBC Workday course export into an iCalendar file",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("failed to read .env", "error", err.Error())
		}

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}

		level := c.LogLevel
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		appLog.SetLevel(appLog.ParseLevel(level))

		conf = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
}

// newConverter builds a converter from conf, pulling exclusions from any
// configured holiday feeds.
func newConverter(ctx context.Context, skipBreaks bool) (*convert.Converter, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}

	var feedPeriods []holiday.Period
	if sources := conf.FeedSources(); len(sources) > 0 {
		fetcher := ics.NewFetcher(conf.CacheDir, nil)
		feedPeriods = holiday.FromFeeds(ctx, fetcher, sources)
	}
	if skipBreaks && !conf.SkipBreaks {
		feedPeriods = append(feedPeriods, holiday.Breaks()...)
	}

	policy, err := conf.Policy(feedPeriods...)
	if err != nil {
		return nil, err
	}
	appLog.Debug("holiday policy ready", "dates", policy.Len())

	return convert.New(convert.Options{
		Location: loc,
		Policy:   policy,
		NewUID:   schedule.UIDGenerator(conf.UIDDomain),
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("command failed", err)
		stop()
		os.Exit(1)
	}
}
