package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quero/internal/tui"
	queroerr "quero/pkg/errors"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, a)
		},
	}
}

func runChat(cmd *cobra.Command, a *app) error {
	assistant, err := buildAssistant(a.cfg, a.logger, true)
	if err != nil {
		return err
	}
	a.logger.Info("chat started", zap.Int("remembered", assistant.Remembered()))

	m := tui.New(cmd.Context(), assistant)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
	final, err := p.Run()
	if err != nil {
		return queroerr.Wrap(err, queroerr.CodeCLISetupFailure, "running chat UI")
	}
	// The alt screen is gone once Run returns; leave the farewell visible.
	if fm, ok := final.(tui.Model); ok && fm.Farewell() != "" {
		fmt.Fprintln(cmd.OutOrStdout(), fm.Farewell())
	}
	return nil
}
