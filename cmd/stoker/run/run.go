// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the run command: it resolves the layered
// configuration for a reference, prepares an isolated run environment and
// supervises the workflow engine until it reaches a terminal state.
package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/matt-FFFFFF/stoker/internal/configstore"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/engine"
	"github.com/matt-FFFFFF/stoker/internal/progress"
	"github.com/matt-FFFFFF/stoker/internal/refdata"
	"github.com/matt-FFFFFF/stoker/internal/supervise"
	"github.com/matt-FFFFFF/stoker/internal/tui"
	"github.com/matt-FFFFFF/stoker/internal/workspace"
)

const (
	referenceArg = "reference"

	inputDirFlag         = "input-dir"
	outputDirFlag        = "output-dir"
	configFileFlag       = "configfile"
	jobsFlag             = "jobs"
	localFlag            = "local"
	verboseFlag          = "verbose"
	engineOptsFlag       = "engine-opts"
	tmpdirFlag           = "tmpdir"
	tuiFlag              = "tui"
	barcodeFileFlag      = "barcode-file"
	cellNamesFlag        = "cell-names"
	filterAnnotationFlag = "filter-annotation"
	binSizeFlag          = "bin-size"
	trimFlag             = "trim"
	trimOptionsFlag      = "trim-options"

	cliExitStr      = ""
	eventBufferSize = 64
)

var (
	// ErrReference is returned when the reference document cannot be resolved.
	ErrReference = errors.New("failed to resolve reference")
	// ErrConfigFile is returned when the user configuration document cannot
	// be read.
	ErrConfigFile = errors.New("failed to read configfile")
)

// Flag names mapped onto the configuration keys they override.
var (
	stringFlagKeys = map[string]string{
		engineOptsFlag:       "engine_options",
		tmpdirFlag:           "tempdir",
		barcodeFileFlag:      "barcode_file",
		cellNamesFlag:        "cell_names",
		filterAnnotationFlag: "filter_annotation",
		trimOptionsFlag:      "trim_options",
	}
	boolFlagKeys = map[string]string{
		localFlag:   "local",
		verboseFlag: "verbose",
		trimFlag:    "trim",
	}
	intFlagKeys = map[string]string{
		jobsFlag:    "jobs",
		binSizeFlag: "bw_binsize",
	}
)

// RunCmd is the command that launches a supervised workflow run.
var RunCmd = &cli.Command{
	Name: "run",
	Description: `Launch the single-cell RNA-seq workflow for a prepared reference.

REFERENCE is a packaged reference short name ('stoker references' lists them)
or the path or URL of a self-describing reference YAML document. Remote
documents use Hashicorp's go-getter syntax, see https://github.com/hashicorp/go-getter.

The effective configuration is assembled from the packaged defaults, the
reference document, an optional --configfile document and the command line
options, in that order of precedence. It is persisted into the output
directory as config.yaml together with an append-only run log, then the
engine is supervised until it finishes. The engine's exit code becomes
stoker's exit code.`,
	Usage: "stoker run GRCh38 -i ./fastq -o ./results",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: referenceArg,
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      inputDirFlag,
			Aliases:   []string{"i"},
			Usage:     "Directory holding the sequencing input. Must exist.",
			Required:  true,
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:      outputDirFlag,
			Aliases:   []string{"o"},
			Usage:     "Run working directory. Created if absent.",
			Required:  true,
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:    configFileFlag,
			Aliases: []string{"c"},
			Usage: "URL of an additional YAML configuration document layered over " +
				"the reference. Supports Hashicorp's go-getter syntax.",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.IntFlag{
			Name:    jobsFlag,
			Aliases: []string{"j"},
			Usage: "Maximum number of concurrent engine jobs. In cluster mode this " +
				"caps concurrent submissions.",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:        localFlag,
			Usage:       "Run the engine on this machine instead of submitting to the cluster",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.BoolFlag{
			Name:        verboseFlag,
			Aliases:     []string{"v"},
			Usage:       "Ask the engine to print the shell commands it executes",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.StringFlag{
			Name:     engineOptsFlag,
			Usage:    "Extra options passed through to the engine verbatim, shell quoting respected",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:      tmpdirFlag,
			Usage:     "Parent directory for the run's temporary working directory",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.BoolFlag{
			Name:        tuiFlag,
			Aliases:     []string{"t", "interactive"},
			Usage:       "Watch the run in an interactive terminal UI with live progress",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.StringFlag{
			Name:      barcodeFileFlag,
			Usage:     "Cell barcode whitelist. Defaults to the packaged CEL-Seq2 barcode set.",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:      cellNamesFlag,
			Usage:     "Sample label file mapping barcodes to cell names",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:     filterAnnotationFlag,
			Usage:    "Pattern restricting the annotation used for counting",
			OnlyOnce: true,
		},
		&cli.IntFlag{
			Name:     binSizeFlag,
			Usage:    "Bin size for coverage track generation",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:        trimFlag,
			Usage:       "Trim reads before alignment",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.StringFlag{
			Name:     trimOptionsFlag,
			Usage:    "Extra options for the read trimmer",
			OnlyOnce: true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	reference := cmd.StringArg(referenceArg)
	if reference == "" {
		logger.Error("Please specify a reference short name or document. " +
			"Use 'stoker references' to list the packaged references.")
		return cli.Exit(cliExitStr, 1)
	}

	cfg, err := resolveConfig(ctx, cmd, reference)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to resolve configuration: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	lctx, cfg, err := prepare(ctx, cmd, cfg)
	if err != nil {
		logger.Error(fmt.Sprintf("Preflight failed: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	// The temporary directory goes away on every path from here on.
	defer workspace.Cleanup(ctx, lctx)

	spec, err := engine.Build(ctx, cfg, lctx)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to build engine command: %s", err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	if err := workspace.AppendRunLog(lctx, os.Args, spec.CommandLine(), spec.Env); err != nil {
		// The run is worth more than its log entry.
		logger.Warn("failed to append run log", "error", err.Error())
	}

	logger.Info("launching engine",
		"run_id", lctx.RunID,
		"reference", reference,
		"output_dir", lctx.OutputDir,
	)

	outcome := runSupervised(ctx, cmd, spec, reference)

	switch outcome.State {
	case supervise.StateCompleted:
		logger.Info("run completed", "run_id", lctx.RunID, "elapsed", outcome.Elapsed.String())
		return nil
	case supervise.StateInterrupted:
		logger.Warn("run interrupted", "run_id", lctx.RunID, "error", errString(outcome.Err))
	default:
		logger.Error("run failed",
			"run_id", lctx.RunID,
			"exit_code", outcome.ExitCode,
			"error", errString(outcome.Err),
		)
	}

	return cli.Exit(cliExitStr, exitCode(outcome))
}

// resolveConfig assembles the effective configuration document from the
// packaged defaults, the reference document, an optional user document and
// the command line overrides, in ascending precedence.
func resolveConfig(ctx context.Context, cmd *cli.Command, reference string) (configstore.Document, error) {
	defaults, err := refdata.Defaults()
	if err != nil {
		return nil, err
	}

	refDoc, err := resolveReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	userDoc, err := loadUserConfig(ctx, cmd.String(configFileFlag))
	if err != nil {
		return nil, err
	}

	overrides := configstore.Overrides(defaults, flagDocument(cmd))

	return configstore.Resolve(defaults, refDoc, userDoc, overrides), nil
}

// resolveReference returns the reference configuration layer. A packaged
// short name wins; anything else is treated as a go-getter source for a
// self-describing reference document.
func resolveReference(ctx context.Context, reference string) (configstore.Document, error) {
	if refdata.IsReference(reference) {
		ctxlog.Debug(ctx, "using packaged reference", "reference", reference)
		return refdata.Lookup(reference)
	}

	ctxlog.Debug(ctx, "fetching reference document", "source", reference)

	data, err := configstore.Fetch(ctx, reference)
	if err != nil {
		return nil, errors.Join(ErrReference, err)
	}

	doc, err := configstore.LoadBytes(data)
	if err != nil {
		return nil, errors.Join(ErrReference, err)
	}

	return doc, nil
}

// loadUserConfig fetches and parses the optional user configuration
// document. An empty source yields a nil layer.
func loadUserConfig(ctx context.Context, src string) (configstore.Document, error) {
	if src == "" {
		return nil, nil
	}

	data, err := configstore.Fetch(ctx, src)
	if err != nil {
		return nil, errors.Join(ErrConfigFile, err)
	}

	doc, err := configstore.LoadBytes(data)
	if err != nil {
		return nil, errors.Join(ErrConfigFile, err)
	}

	return doc, nil
}

// flagDocument maps the flags the user actually set onto their configuration
// keys. Values matching the packaged defaults are weeded out later by
// configstore.Overrides.
func flagDocument(cmd *cli.Command) configstore.Document {
	doc := configstore.Document{}

	for flag, key := range stringFlagKeys {
		if cmd.IsSet(flag) {
			doc.Set(key, cmd.String(flag))
		}
	}

	for flag, key := range boolFlagKeys {
		if cmd.IsSet(flag) {
			doc.Set(key, cmd.Bool(flag))
		}
	}

	for flag, key := range intFlagKeys {
		if cmd.IsSet(flag) {
			doc.Set(key, cmd.Int(flag))
		}
	}

	return doc
}

// prepare validates the launcher inputs and creates the run environment.
// The auxiliary paths come from the resolved configuration, so documents can
// supply them as well as flags.
func prepare(
	ctx context.Context, cmd *cli.Command, cfg configstore.Document,
) (*workspace.LaunchContext, configstore.Document, error) {
	barcodeFile, _ := cfg.String("barcode_file")
	cellNames, _ := cfg.String("cell_names")
	tempDirBase, _ := cfg.String("tempdir")

	return workspace.Prepare(ctx, cfg, workspace.Options{
		InputDir:    cmd.String(inputDirFlag),
		OutputDir:   cmd.String(outputDirFlag),
		BarcodeFile: barcodeFile,
		CellNames:   cellNames,
		TempDirBase: tempDirBase,
	})
}

// runSupervised executes the rendered engine command under supervision,
// either streaming to the terminal or inside the TUI.
func runSupervised(
	ctx context.Context, cmd *cli.Command, spec *engine.CommandSpec, title string,
) supervise.Outcome {
	sup := &supervise.Supervisor{Spec: spec}

	if cmd.Bool(tuiFlag) {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return runWithTUI(ctx, cmd, sup, title)
		}

		ctxlog.Info(ctx, "stdout is not a terminal, falling back to plain output")
	}

	reporter := progress.NewChannelReporter(ctx, eventBufferSize)
	sup.Reporter = reporter

	done := make(chan struct{})

	go func() {
		defer close(done)
		logProgress(ctx, reporter.Events())
	}()

	outcome := sup.Run(ctx)

	reporter.Close()
	<-done

	return outcome
}

// runWithTUI executes the run inside the terminal UI. Log output is buffered
// while the TUI owns the screen and replayed afterwards; on failure the
// engine's stderr tail is printed since the live stream was not visible.
func runWithTUI(
	ctx context.Context, cmd *cli.Command, sup *supervise.Supervisor, title string,
) supervise.Outcome {
	buf := new(bytes.Buffer)
	tuiCtx := ctxlog.NewForTUI(ctx, buf)

	runner := tui.NewRunner(tuiCtx)
	runner.SetTitle(title)

	sup.Stdout = io.Discard
	sup.Stderr = io.Discard

	outcome, tuiErr := runner.Run(tuiCtx, sup)

	buf.WriteTo(cmd.Writer) //nolint:errcheck // Replay buffered log output once the screen is back.

	if tuiErr != nil {
		ctxlog.Error(ctx, "tui error", "error", tuiErr.Error())
	}

	if !outcome.Success() && len(outcome.StderrTail) > 0 {
		fmt.Fprintln(cmd.ErrWriter, "last engine output:")
		cmd.ErrWriter.Write(outcome.StderrTail) //nolint:errcheck
	}

	return outcome
}

// logProgress narrates progress events while the engine output streams to
// the terminal.
func logProgress(ctx context.Context, events <-chan progress.Event) {
	for event := range events {
		switch event.Type {
		case progress.EventStepStarted:
			ctxlog.Info(ctx, "step started", "rule", event.Data.Step)
		case progress.EventStepsDone:
			ctxlog.Info(ctx, "workflow progress",
				"done", event.Data.Done,
				"total", event.Data.Total,
				"percent", fmt.Sprintf("%.1f", event.Data.Percent),
			)
		case progress.EventStepFailed:
			ctxlog.Warn(ctx, "step failed", "rule", event.Data.Step)
		case progress.EventHeartbeat:
			ctxlog.Debug(ctx, "engine running", "elapsed", event.Data.Elapsed.String())
		}
	}
}

// exitCode mirrors the engine's exit code, normalizing kill and preflight
// codes to 1.
func exitCode(outcome supervise.Outcome) int {
	if outcome.ExitCode > 0 {
		return outcome.ExitCode
	}

	return 1
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
