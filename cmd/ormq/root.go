package main

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/guregu/null.v3"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/config"
)

type globalFlags struct {
	configFile string
	schema     string
	provider   string
	dsn        string
	logLevel   string
}

type globalState struct {
	ctx    context.Context
	stdOut io.Writer
	stdErr io.Writer
	env    map[string]string
	flags  globalFlags
	logger *logrus.Logger
}

func newGlobalState(ctx context.Context, stdOut, stdErr io.Writer, environ []string) *globalState {
	logger := logrus.New()
	logger.SetOutput(stdErr)
	return &globalState{
		ctx:    ctx,
		stdOut: stdOut,
		stdErr: stdErr,
		env:    config.Environ(environ),
		logger: logger,
	}
}

// consolidatedConfig layers the config file, the environment and the
// flags over the defaults.
func (gs *globalState) consolidatedConfig() (config.Config, error) {
	var raw []byte
	if gs.flags.configFile != "" {
		data, err := os.ReadFile(gs.flags.configFile)
		if err != nil {
			return config.Config{}, err
		}
		raw = data
	}
	cfg, err := config.GetConsolidatedConfig(raw, gs.env)
	if err != nil {
		return cfg, err
	}
	cfg = cfg.Apply(config.Config{
		Schema:   null.NewString(gs.flags.schema, gs.flags.schema != ""),
		Provider: null.NewString(gs.flags.provider, gs.flags.provider != ""),
		DSN:      null.NewString(gs.flags.dsn, gs.flags.dsn != ""),
		LogLevel: null.NewString(gs.flags.logLevel, gs.flags.logLevel != ""),
	})
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	configured := cfg.Logger()
	gs.logger.SetLevel(configured.GetLevel())
	gs.logger.SetFormatter(configured.Formatter)
	return cfg, nil
}

func newRootCommand(gs *globalState) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ormq",
		Short:         "Translate and run queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(gs.stdOut)
	rootCmd.SetErr(gs.stdErr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&gs.flags.configFile, "config", "c", "", "JSON config file")
	flags.StringVarP(&gs.flags.schema, "schema", "s", "", "YAML schema of the model")
	flags.StringVarP(&gs.flags.provider, "provider", "p", "", "sqlite, postgresql, sqlserver or cosmos")
	flags.StringVar(&gs.flags.dsn, "dsn", "", "data source of exec")
	flags.StringVar(&gs.flags.logLevel, "log-level", "", "log level")

	rootCmd.AddCommand(
		getCmdTranslate(gs),
		getCmdModel(gs),
		getCmdDiff(gs),
		getCmdExec(gs),
	)
	return rootCmd
}
