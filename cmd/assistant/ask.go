package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"medibridge-assistant/internal/domain"
	"medibridge-assistant/internal/logging"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [choice...]",
		Short: "Send choices one after another and print the conversation",
		Example: `  assistant ask Donations Blood Yes
  assistant ask --offline --json "Volunteer"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			closer, err := logging.Setup(opts.logLevel, opts.logFile)
			if err != nil {
				return err
			}
			defer closer.Close()

			engine, err := newEngine(opts)
			if err != nil {
				return err
			}
			engine.Open()

			for _, label := range args {
				if _, err := engine.SubmitChoice(cmd.Context(), label); err != nil {
					return errors.Wrapf(err, "submitting %q", label)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					SessionID string        `json:"sessionId"`
					Turns     []domain.Turn `json:"turns"`
				}{engine.SessionID(), engine.History()})
			}
			return printTranscript(out, engine.History())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the conversation as JSON")
	return cmd
}

func printTranscript(w io.Writer, turns []domain.Turn) error {
	for _, t := range turns {
		who := "assistant"
		if t.Sender == domain.SenderUser {
			who = "you"
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", who, t.Text); err != nil {
			return err
		}
		if len(t.Options) > 0 {
			if _, err := fmt.Fprintf(w, "  [%s]\n", strings.Join(t.Options, "] [")); err != nil {
				return err
			}
		}
	}
	return nil
}
