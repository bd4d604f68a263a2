package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quero/internal/config"
	queroerr "quero/pkg/errors"
)

func newInitCmd() *cobra.Command {
	var (
		provider string
		username string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file for a provider",
		Args:  cobra.NoArgs,
		// init writes the config, so it must not load one first.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return queroerr.New(queroerr.CodeCLIInputInvalid,
					fmt.Sprintf("config %s already exists; use --force to overwrite", path), queroerr.FieldPath(path))
			}

			cfg, err := config.ForProvider(provider)
			if err != nil {
				return err
			}
			cfg.Username = username
			if cfg.Username == "" {
				cfg.Username = os.Getenv("USER")
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s config to %s\n", provider, path)
			if cfg.Chat.APIKeyEnv != "" && os.Getenv(cfg.Chat.APIKeyEnv) == "" {
				fmt.Fprintf(out, "Set %s (or add it to .env) before chatting.\n", cfg.Chat.APIKeyEnv)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", config.ProviderHashing, "provider for embeddings and chat: openai, ollama or hashing")
	cmd.Flags().StringVar(&username, "username", "", "name the assistant calls you (default $USER)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
