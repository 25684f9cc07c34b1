package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"medibridge-assistant/handler"
	"medibridge-assistant/internal/integrations/paramstore"
	"medibridge-assistant/internal/logging"
	"medibridge-assistant/internal/repository"
	"medibridge-assistant/internal/script"
	"medibridge-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	if _, err := logging.Setup(os.Getenv("LOG_LEVEL"), ""); err != nil {
		log.Fatal().Err(err).Msg("invalid LOG_LEVEL")
	}
	scriptParam := os.Getenv("SCRIPT_PARAM")
	scriptFile := os.Getenv("SCRIPT_FILE")
	exchangeTable := os.Getenv("EXCHANGE_TABLE")
	localAddr := os.Getenv("LOCAL_ADDR")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 500)

	// ---- AWS SDK config (only when an AWS-backed component is enabled) ----
	var cfg aws.Config
	if scriptParam != "" || exchangeTable != "" {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load AWS config")
		}
	}

	// ---- Script source ----
	loader, err := scriptLoader(cfg, scriptParam, scriptFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up script source")
	}

	// ---- Reply service ----
	opts := []usecase.ReplyOption{
		usecase.WithMaxMessageLength(maxMessageLen),
		usecase.WithReplyLogger(log.Logger),
	}
	if exchangeTable != "" {
		exchanges, err := repository.New(awsdynamodb.NewFromConfig(cfg), exchangeTable)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create exchange log client")
		}
		opts = append(opts, usecase.WithExchangeRecorder(exchanges))
	}
	replyService, err := usecase.NewReplyService(loader, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create reply service")
	}

	// ---- Handler ----
	h, err := handler.NewHandler(replyService, handler.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create handler")
	}

	if localAddr == "" {
		lambda.Start(h.Handle)
		return
	}

	mux := http.NewServeMux()
	mux.Handle(handler.ReplyPath, h)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              localAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", localAddr).Msg("responder listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// scriptLoader prefers the SSM parameter, then a local file, then the
// built-in script.
func scriptLoader(cfg aws.Config, param, file string) (usecase.ScriptLoader, error) {
	switch {
	case param != "":
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		loader, err := paramstore.NewScriptLoader(ssmClient, param)
		if err != nil {
			return nil, err
		}
		return loader, nil
	case file != "":
		sc, err := script.ParseFile(file)
		if err != nil {
			return nil, err
		}
		return usecase.StaticScript{Script: sc}, nil
	default:
		return usecase.StaticScript{Script: script.Default()}, nil
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
