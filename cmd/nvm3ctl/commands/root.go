// Package commands implements the nvm3ctl command tree.
package commands

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cpc-project/nvm3"
	"github.com/cpc-project/nvm3/config"
	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/kv"
	"github.com/cpc-project/nvm3/metrics"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// app carries what every subcommand needs.
type app struct {
	v        *viper.Viper
	dialer   cpc.Dialer
	registry *prometheus.Registry
	cfg      *config.Config
}

// New builds the root command. A nil dialer connects to the daemon socket
// named by the configuration.
func New(dialer cpc.Dialer) *cobra.Command {
	a := &app{v: config.NewViper(), dialer: dialer}

	root := &cobra.Command{
		Use:   "nvm3ctl",
		Short: "Inspect and edit the NVM3 store of a CPC secondary",
		Long: `nvm3ctl talks to the NVM3 endpoint of a CPC daemon instance.

Keys accept decimal or 0x-prefixed hexadecimal notation. Settings are read
from --config, NVM3_* environment variables and flags, in increasing order
of precedence.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	f := root.PersistentFlags()
	f.String("config", "", "Configuration file (YAML)")
	f.String("instance", cpc.DefaultInstance, "Daemon instance name")
	f.Duration("timeout", config.DefaultTimeout, "Timeout of each remote call (0 waits forever)")
	f.Bool("trace", false, "Ask the daemon to trace the endpoint traffic")
	f.String("log-level", "warning", "Log level (off|error|warning|info|debug|trace)")
	f.String("log-file", "", "Log to this file instead of stdout")
	f.Bool("metrics", false, "Print operation counters after the command")
	f.StringP("output", "o", "table", "Output format (table|json|yaml)")

	_ = a.v.BindPFlag("instance", f.Lookup("instance"))
	_ = a.v.BindPFlag("timeout", f.Lookup("timeout"))
	_ = a.v.BindPFlag("tracing", f.Lookup("trace"))
	_ = a.v.BindPFlag("log.level", f.Lookup("log-level"))
	_ = a.v.BindPFlag("log.path", f.Lookup("log-file"))
	_ = a.v.BindPFlag("metrics.enabled", f.Lookup("metrics"))

	root.AddCommand(
		a.infoCmd(),
		a.listCmd(),
		a.readCmd(),
		a.writeCmd(),
		a.deleteCmd(),
		a.counterCmd(),
		versionCmd(),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := nvm3.InitLogger(cfg.Log.Prefix, cfg.Log.Level, cfg.Log.Path, cfg.Log.Append); err != nil {
		return err
	}
	return nil
}

// open returns a store for the configured instance.
func (a *app) open() (*kv.Client, error) {
	d := a.dialer
	if d == nil {
		d = socketDialer(a.cfg.SocketDir)
	}

	var rec metrics.Recorder
	if a.cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		rec = metrics.NewPrometheus(a.registry)
	}

	timeout := a.cfg.Timeout
	if timeout == 0 {
		timeout = kv.NoTimeout
	}

	return kv.New(kv.Config{
		Instance: a.cfg.Instance,
		Tracing:  a.cfg.Tracing,
		Dialer:   d,
		Metrics:  rec,
		Timeout:  timeout,
		Retries:  -1,
	})
}

// run opens the store, runs fn and closes the store again.
func (a *app) run(cmd *cobra.Command, fn func(*kv.Client) error) (err error) {
	store, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
		if a.registry != nil {
			err = errors.Join(err, a.printMetrics(cmd))
		}
	}()
	return fn(store)
}
