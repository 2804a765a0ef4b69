// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Warden drives authenticated sessions against the game-messaging
// service: one session per roster account, each logging in (answering
// second-factor challenges, presenting persisted device
// authorizations) and executing a single workflow — report, commend,
// or match query — before reporting its outcome.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/warden-foundation/warden/banlookup"
	"github.com/warden-foundation/warden/lib/config"
	"github.com/warden-foundation/warden/lib/version"
	"github.com/warden-foundation/warden/sentry"
	"github.com/warden-foundation/warden/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		accountsPath string
		mode         string
		targetID     uint64
		matchID      uint64
		friendly     bool
		teaching     bool
		leader       bool
		logLevel     string
		showVersion  bool
	)

	pflag.StringVar(&configPath, "config", "", "path to the settings file (required)")
	pflag.StringVar(&accountsPath, "accounts", "", "path to the account roster (overrides the settings file)")
	pflag.StringVar(&mode, "mode", "", "workflow to run: report, commend, or match")
	pflag.Uint64Var(&targetID, "target", 0, "target account identity (report and commend)")
	pflag.Uint64Var(&matchID, "match", 0, "match identifier (report and match)")
	pflag.BoolVar(&friendly, "friendly", false, "commend as friendly")
	pflag.BoolVar(&teaching, "teaching", false, "commend as a good teacher")
	pflag.BoolVar(&leader, "leader", false, "commend as a good leader")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("warden %s\n", version.Info())
		return nil
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	if accountsPath == "" {
		accountsPath = settings.AccountsPath
	}
	if accountsPath == "" {
		return fmt.Errorf("no account roster: set --accounts or accounts_path in %s", configPath)
	}

	request, err := buildRequest(mode, targetID, matchID, workflow.CommendReasons{
		Friendly: friendly,
		Teaching: teaching,
		Leader:   leader,
	})
	if err != nil {
		return err
	}

	accounts, err := config.LoadAccounts(accountsPath)
	if err != nil {
		return err
	}

	var bans banlookup.Lookup
	if settings.BanLookup.BaseURL != "" {
		client, err := banlookup.NewClient(banlookup.ClientConfig{
			BaseURL: settings.BanLookup.BaseURL,
			APIKey:  settings.BanLookup.APIKey,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		bans = client
	}

	var sentries *sentry.Store
	if settings.Sentry.Path != "" {
		sentries, err = sentry.Open(sentry.StoreConfig{
			Path:   settings.Sentry.Path,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer sentries.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting fleet",
		"version", version.Info(),
		"accounts", len(accounts),
		"workflow", request.Name())

	runner := &fleet{
		gatewayAddress: settings.Gateway.Address,
		appID:          settings.Gateway.AppID,
		sentries:       sentries,
		bans:           bans,
		prompter:       newPrompter(os.Stdin, os.Stderr),
		logger:         logger,
	}
	results, err := runner.run(ctx, accounts, request)
	if err != nil {
		return err
	}

	fmt.Print(renderSummary(results))
	return nil
}

// buildRequest assembles the workflow request from the mode flags.
func buildRequest(mode string, targetID, matchID uint64, reasons workflow.CommendReasons) (workflow.Request, error) {
	switch mode {
	case "report":
		if targetID == 0 {
			return nil, fmt.Errorf("--target is required for report")
		}
		return workflow.Report{TargetID: targetID, MatchID: matchID}, nil
	case "commend":
		if targetID == 0 {
			return nil, fmt.Errorf("--target is required for commend")
		}
		return workflow.Commend{TargetID: targetID, Reasons: reasons}, nil
	case "match":
		if matchID == 0 {
			return nil, fmt.Errorf("--match is required for match")
		}
		return workflow.MatchQuery{MatchID: matchID}, nil
	case "":
		return nil, fmt.Errorf("--mode is required (report, commend, or match)")
	default:
		return nil, fmt.Errorf("unknown mode %q (want report, commend, or match)", mode)
	}
}

func parseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
