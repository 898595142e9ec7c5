package cli

import (
	"podnest/internal/config"
	"podnest/internal/db"
	"podnest/internal/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the podnest command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "podnest",
		Short:         "Podnest - pods, stories and the people who follow them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRankCommand(opts))

	return cmd
}

// bootstrap loads configuration and opens the logger and database shared by
// every subcommand.
func bootstrap(opts *RootOptions) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "init logger")
	}

	gdb, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, gdb, nil
}
