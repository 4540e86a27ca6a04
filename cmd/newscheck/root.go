package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zombar/newscheck/internal/config"
	"github.com/zombar/newscheck/pkg/logging"
)

const version = "1.0.0"

// options holds state shared by all subcommands
type options struct {
	configFile string
	viper      *viper.Viper
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "newscheck",
		Short: "News credibility verification service",
		Long: `newscheck scores news articles by fusing an LLM judgment with a local
classifier, calibrates past scores against a labeled reference corpus and
retrains the classifier from user feedback.

Configuration is read from defaults, an optional YAML file, a .env file and
NEWSCHECK_* environment variables, in increasing order of precedence.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(opts.configFile)
			if err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			opts.viper = v
			opts.cfg = cfg
			opts.logger = logging.New(cfg.LogFormat, cfg.LogLevel)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file")
	root.PersistentFlags().String("db_path", "", "SQLite database path (env: NEWSCHECK_DB_PATH)")
	root.PersistentFlags().String("redis_addr", "", "Redis address for background jobs (env: NEWSCHECK_REDIS_ADDR)")

	root.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newCalibrateCmd(opts),
		newRetrainCmd(opts),
		newImportCmd(opts),
		newConfigCmd(opts),
	)
	return root
}
