// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the stoker command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/stoker"
	"github.com/matt-FFFFFF/stoker/cmd/stoker/config"
	"github.com/matt-FFFFFF/stoker/cmd/stoker/references"
	"github.com/matt-FFFFFF/stoker/cmd/stoker/run"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		config.ConfigCmd,
		references.ReferencesCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "stoker",
	Description: `Stoker is the launcher for a snakemake based single-cell RNA-seq
workflow. It assembles the layered run configuration, prepares an isolated
run environment, renders the engine command for local or cluster execution
and supervises the engine until it finishes, mirroring its exit code.`,
	Usage:     "stoker run GRCh38 -i ./fastq -o ./results",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", stoker.Version, stoker.Commit)

	err := rootCmd.Run(ctx, os.Args) // Err is handled by cli framework

	// Check if the context was cancelled (e.g., due to signals)
	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
