/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ldruley/tripmailer/pkg/api"
	"github.com/ldruley/tripmailer/pkg/config"
	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/events"
	"github.com/ldruley/tripmailer/pkg/mail"
	"github.com/ldruley/tripmailer/pkg/queue"
	"github.com/ldruley/tripmailer/pkg/version"
)

const shutdownTimeout = 45 * time.Second

func main() {
	var (
		debug      bool
		configPath string
	)
	flag.BoolVar(&debug, "debug", false, "enable debug level logging")
	flag.StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")
	flag.Parse()

	zl := setupLogger(debug)
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting tripmailer")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading tripmailer config: %v", err)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid tripmailer config: %v", err)
	}

	if debug {
		log.Infof("%#v", cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := queue.Connect(ctx, queue.BrokerConfig{
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		DB:       cfg.Broker.DB,
		Password: cfg.Broker.Password,
		Prefix:   cfg.Broker.Prefix,
	}, log)
	if err != nil {
		log.Fatalf("Error connecting to broker: %v", err)
	}

	registry := queue.NewRegistry(broker, log)
	service := email.NewService(registry, log)

	sender, err := mail.NewSender(cfg.Mail, log)
	if err != nil {
		log.Fatalf("Error creating mail sender: %v", err)
	}

	sink, err := events.NewFromConfig(cfg.Events.Brokers, cfg.Events.Topic, zl)
	if err != nil {
		log.Fatalf("Error creating delivery event sink: %v", err)
	}
	if sink == nil {
		log.Infow("Delivery event stream disabled; no brokers configured")
	}

	var workerRate *queue.RateLimit
	if cfg.Worker.RateLimitMax > 0 {
		workerRate = &queue.RateLimit{
			Max:    cfg.Worker.RateLimitMax,
			Window: time.Duration(cfg.Worker.RateLimitWindowMs) * time.Millisecond,
		}
	}
	delivery := email.NewDelivery(sender, sink, email.DeliveryConfig{
		From:          cfg.Mail.From,
		SenderName:    cfg.Mail.SenderName,
		TestRecipient: cfg.TestRecipient,
		Production:    cfg.IsProduction(),
		Concurrency:   cfg.Worker.Concurrency,
		RateLimit:     workerRate,
	}, log)
	if _, err := delivery.Register(registry); err != nil {
		log.Fatalf("Error registering email worker: %v", err)
	}

	server := api.NewServer(zl, cfg, debug, broker)
	emailController := api.NewEmailController(service, log)
	err = server.RegisterAll([]api.APIController{
		emailController,
		api.NewQueueController(service, log),
		api.NewWorkerController(registry),
	})
	if err != nil {
		log.Fatalf("Error registering API controllers: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("API listening", "address", cfg.Server.ListenAddress)
		errCh <- server.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Errorw("API server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("API shutdown incomplete", "error", err)
	}
	emailController.Stop()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Queue shutdown incomplete", "error", err)
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Warnw("Event sink close failed", "error", err)
		}
	}
	log.Info("Shutdown complete")
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
