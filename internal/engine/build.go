// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/matt-FFFFFF/stoker/internal/configstore"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/workspace"
)

// LookPath resolves an executable on the PATH. Replaceable for tests.
var LookPath = exec.LookPath

var (
	// ErrEngineNotFound is returned when the engine executable cannot be
	// resolved on the PATH.
	ErrEngineNotFound = errors.New("engine executable not found")
	// ErrEngineOptions is returned when the raw engine options cannot be
	// split into arguments.
	ErrEngineOptions = errors.New("invalid engine options")
	// ErrSubmitCommand is returned when cluster mode is requested without a
	// submit command.
	ErrSubmitCommand = errors.New("cluster submit command not configured")
)

// Placeholders understood in the cluster submit command. The log directory
// is filled in by the launcher; threads and name are expanded by the engine
// per step and pass through verbatim.
const (
	logDirPlaceholder  = "{log_dir}"
	threadsPlaceholder = "{threads}"
	namePlaceholder    = "{name}"
)

const defaultExecutable = "snakemake"

// Build renders the engine invocation for a prepared run. The configuration
// document decides the execution mode: local runs cap engine workers at the
// jobs value, cluster runs add the submission wrapper and treat jobs as the
// concurrent submission limit.
func Build(ctx context.Context, cfg configstore.Document, lctx *workspace.LaunchContext) (*CommandSpec, error) {
	executable, ok := cfg.String("engine.executable")
	if !ok || executable == "" {
		executable = defaultExecutable
	}

	path, err := LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrEngineNotFound, executable, err)
	}

	args := make([]string, 0, 16)

	if snakefile, ok := cfg.String("engine.snakefile"); ok && snakefile != "" {
		args = append(args, "--snakefile", snakefile)
	}

	args = append(args,
		"--configfile", lctx.ConfigFile,
		"--directory", lctx.OutputDir,
		"--jobs", strconv.Itoa(jobs(cfg)),
		"--keep-going",
	)

	if verbose, _ := cfg.Bool("verbose"); verbose {
		args = append(args, "--printshellcmds")
	}

	local, _ := cfg.Bool("local")
	if !local {
		submit, err := submitCommand(ctx, cfg, lctx)
		if err != nil {
			return nil, err
		}

		args = append(args, "--cluster", submit)
	}

	if raw, ok := cfg.String("engine_options"); ok && raw != "" {
		extra, err := shellwords.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrEngineOptions, raw, err)
		}

		args = append(args, extra...)
	}

	return &CommandSpec{
		Path: path,
		Args: args,
		Dir:  lctx.OutputDir,
		Env: map[string]string{
			"TMPDIR": lctx.TempDir,
		},
	}, nil
}

// jobs returns the configured concurrency cap, falling back to one engine
// worker when the document carries nothing usable.
func jobs(cfg configstore.Document) int {
	n, ok := cfg.Int("jobs")
	if !ok || n < 1 {
		return 1
	}

	if local, _ := cfg.Bool("local"); local {
		return n
	}

	if limit, ok := cfg.Int("cluster.max_jobs"); ok && limit > 0 && n > limit {
		return limit
	}

	return n
}

func submitCommand(ctx context.Context, cfg configstore.Document, lctx *workspace.LaunchContext) (string, error) {
	template, ok := cfg.String("cluster.submit_command")
	if !ok || template == "" {
		return "", ErrSubmitCommand
	}

	if !strings.Contains(template, threadsPlaceholder) {
		ctxlog.Warn(ctx, "cluster submit command has no threads placeholder, steps will not request cores",
			"submit_command", template)
	}

	return strings.ReplaceAll(template, logDirPlaceholder, lctx.ClusterLogDir), nil
}
