package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ayusman/signtalk/internal/config"
	"github.com/ayusman/signtalk/internal/monitoring"
)

// app carries what every subcommand needs once flags are resolved.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "signtalk",
		Short:        "Real-time hand sign recognition engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to the YAML configuration file")
	flags.String("db", "", "path to the SQLite artifact store (overrides store.path)")
	flags.String("log-level", "", "log level: debug, info, warn or error (overrides log.level)")

	a.v.SetEnvPrefix("SIGNTALK")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"config", "db", "log-level"} {
		if err := a.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newReplayCmd(a),
		newTrainCmd(a),
		newLabelsCmd(a),
	)
	return root
}

// init loads the configuration and builds the logger. Flags and SIGNTALK_*
// environment variables take precedence over the file.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if db := a.v.GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if level := a.v.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	var log *logrus.Logger
	if cfg.Log.Format == "json" {
		log, err = monitoring.NewJSON(cfg.Log.Level, cmd.ErrOrStderr())
	} else {
		log, err = monitoring.New(cfg.Log.Level, cmd.ErrOrStderr())
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}
