package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"medibridge-assistant/internal/integrations/responder"
	"medibridge-assistant/internal/script"
	"medibridge-assistant/internal/usecase"
)

const baseURLEnv = "MEDIBRIDGE_API_BASE"

type rootOptions struct {
	logLevel string
	logFile  string

	baseURL       string
	timeout       time.Duration
	guardInFlight bool
	offline       bool
	scriptFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "assistant",
		Short:         "MediBridge FAQ assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFile, "log-file", "", "append logs to this file")
	pf.StringVar(&opts.baseURL, "base-url", envOr(baseURLEnv, responder.DefaultBaseURL), "responder base URL (env "+baseURLEnv+")")
	pf.DurationVar(&opts.timeout, "timeout", 0, "per-reply timeout, 0 disables it")
	pf.BoolVar(&opts.guardInFlight, "guard-inflight", false, "reject a choice while another reply is pending")
	pf.BoolVar(&opts.offline, "offline", false, "answer from a local dialogue script instead of the responder")
	pf.StringVar(&opts.scriptFile, "script", "", "dialogue script YAML for --offline (built-in script if empty)")

	root.AddCommand(newChatCmd(opts), newAskCmd(opts))
	return root
}

// newEngine wires an engine to either the remote responder or, offline, an
// in-process ReplyService.
func newEngine(opts *rootOptions) (*usecase.Engine, error) {
	var r usecase.Responder
	if opts.offline {
		sc := script.Default()
		if opts.scriptFile != "" {
			var err error
			sc, err = script.ParseFile(opts.scriptFile)
			if err != nil {
				return nil, errors.Wrap(err, "loading dialogue script")
			}
		}
		svc, err := usecase.NewReplyService(usecase.StaticScript{Script: sc}, usecase.WithReplyLogger(log.Logger))
		if err != nil {
			return nil, errors.Wrap(err, "creating reply service")
		}
		r = svc
	} else {
		r = responder.NewClient(
			responder.WithBaseURL(opts.baseURL),
			responder.WithTimeout(opts.timeout),
		)
	}

	engineOpts := []usecase.EngineOption{usecase.WithLogger(log.Logger)}
	if opts.guardInFlight {
		engineOpts = append(engineOpts, usecase.WithInFlightGuard())
	}
	e, err := usecase.NewEngine(r, engineOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating engine")
	}
	return e, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
