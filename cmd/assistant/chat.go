package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"medibridge-assistant/internal/logging"
	"medibridge-assistant/internal/widget"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat widget in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The alt screen owns stderr, so logs only go to a file.
			if opts.logFile == "" {
				logger, err := logging.New(opts.logLevel, io.Discard)
				if err != nil {
					return err
				}
				log.Logger = logger
			} else {
				closer, err := logging.Setup(opts.logLevel, opts.logFile)
				if err != nil {
					return err
				}
				defer closer.Close()
			}

			engine, err := newEngine(opts)
			if err != nil {
				return err
			}
			log.Info().Str("session_id", engine.SessionID()).Bool("offline", opts.offline).Msg("chat started")

			var wopts []widget.Option
			wopts = append(wopts, widget.WithLogger(log.Logger))
			if open {
				wopts = append(wopts, widget.WithOpen())
			}
			m := widget.New(cmd.Context(), engine, wopts...)

			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
				return errors.Wrap(err, "running chat widget")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", true, "start with the widget open")
	return cmd
}
