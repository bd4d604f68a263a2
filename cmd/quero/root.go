package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quero/internal/config"
	"quero/internal/logging"
	queroerr "quero/pkg/errors"
)

// app carries what PersistentPreRunE resolved to the subcommands.
type app struct {
	cfg     *config.AppConfig
	cfgPath string
	logger  *zap.Logger
}

// NewRootCmd creates the root quero command with all subcommands registered.
// Running it without a subcommand starts the chat.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "quero",
		Short:         "Quero, a personal assistant that remembers your documents",
		Long:          "Quero chats with you about the text and markdown files you share with it.\nDocuments are embedded once and kept in a local vector store file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, a)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ./quero.yaml or ~/.quero/config.yaml)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(a),
		newAddCmd(a),
		newSearchCmd(a),
		newInitCmd(),
	)
	return root
}

// setup loads .env, the config file and the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	var err error
	if cfgFile != "" {
		a.cfg, err = config.Load(cfgFile)
		a.cfgPath = cfgFile
	} else {
		a.cfg, a.cfgPath, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.cfg.Log.Debug = true
	}
	logger, err := logging.New(a.cfg.Log.Debug, a.cfg.Log.Path)
	if err != nil {
		return queroerr.Wrap(err, queroerr.CodeCLISetupFailure, "creating logger", queroerr.FieldPath(a.cfg.Log.Path))
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	a.logger.Debug("config loaded", zap.String("config", a.cfgPath))
	return nil
}

// loadDotEnv reads ./.env when present so api_key_env lookups succeed.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return queroerr.Wrap(err, queroerr.CodeConfigParseInvalidFormat, "loading .env", queroerr.FieldPath(".env"))
	}
	return nil
}
