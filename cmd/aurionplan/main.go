package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aurionplan/internal/config"
	appLog "aurionplan/internal/log"
)

const version = "0.1.0"

// rootFlags holds the persistent CLI flags shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
	color      bool
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "aurionplan",
		Short:         "Aurion schedule scraper and planning API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/aurionplan/config.yaml", "Path to config file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at DEBUG level")
	root.PersistentFlags().BoolVar(&flags.color, "color", false, "Colorize log output")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newFetchCmd(flags))
	root.AddCommand(newExportCmd(flags))
	return root
}

// loadConfig reads the config file plus its local overrides and applies the
// logging flags.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	appLog.Init(os.Stderr, flags.color)

	conf, err := config.LoadWithOverrides(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return nil, err
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if flags.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"config_path", flags.configPath,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"portal", conf.Portal.LoginURL(),
		"headless", conf.Browser.IsHeadless(),
		"cache_driver", conf.Cache.Driver,
		"cache_max_age_hours", conf.Cache.MaxAgeHours,
		"session_idle_minutes", conf.Session.IdleMinutes,
		"basic_auth", conf.BasicAuth != nil,
	)
	return conf, nil
}
