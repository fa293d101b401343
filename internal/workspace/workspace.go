// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"

	"github.com/matt-FFFFFF/stoker/internal/configstore"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/refdata"
)

// FS is a filesystem abstraction used for file operations.
// Default is the OS filesystem, but can be replaced with a mock for testing.
var FS = afero.NewOsFs()

// TempDirPath returns the base directory for temporary working directories.
var TempDirPath = os.TempDir

// NewRunID returns a unique, sortable identifier for a run.
var NewRunID = func() string {
	return ulid.Make().String()
}

var (
	// ErrPath is returned when a required path does not exist.
	ErrPath = errors.New("required path missing")
	// ErrPrepare is returned when the run environment cannot be created.
	ErrPrepare = errors.New("failed to prepare run environment")
)

const (
	// ConfigFileName is the effective configuration document persisted into
	// the output directory.
	ConfigFileName = "config.yaml"
	// ClusterLogDirName is the directory below the output directory that
	// receives per-step scheduler logs in cluster mode.
	ClusterLogDirName = "cluster_logs"
	// AuxDirName is the directory below the output directory that receives
	// packaged data files substituted for absent options.
	AuxDirName = "aux"

	tempDirPrefix = "stoker_"

	sixFourFour   = 0o644
	sevenFiveFive = 0o755
)

// Options are the launcher inputs that shape the run environment.
type Options struct {
	// InputDir is the directory holding the sequencing input. It must exist.
	InputDir string
	// OutputDir is the run working directory. It is created if absent.
	OutputDir string
	// BarcodeFile is an optional cell barcode whitelist. When empty the
	// packaged default is materialized into the output directory.
	BarcodeFile string
	// CellNames is an optional sample label file.
	CellNames string
	// TempDirBase overrides the platform temporary directory as the parent
	// of the run's temporary working directory.
	TempDirBase string
}

// LaunchContext describes a fully prepared run environment.
type LaunchContext struct {
	RunID         string
	InputDir      string
	OutputDir     string
	ClusterLogDir string
	ConfigFile    string
	TempDir       string
	RunLog        string
	BarcodeFile   string
}

// Prepare validates the inputs and creates the run environment. It returns
// the launch context and the enriched configuration document that was
// persisted to the output directory.
//
// Validation happens before any filesystem write, so a failed Prepare leaves
// nothing behind. Repeating a successful Prepare against the same output
// directory is safe: directories are reused, the configuration document is
// overwritten and a fresh temporary directory is created.
func Prepare(ctx context.Context, cfg configstore.Document, opts Options) (*LaunchContext, configstore.Document, error) {
	logger := ctxlog.Logger(ctx)

	inDir, err := absPath(opts.InputDir)
	if err != nil {
		return nil, nil, errors.Join(ErrPrepare, err)
	}

	outDir, err := absPath(opts.OutputDir)
	if err != nil {
		return nil, nil, errors.Join(ErrPrepare, err)
	}

	barcodeFile, cellNames := opts.BarcodeFile, opts.CellNames

	var preflight *multierror.Error

	if ok, _ := afero.DirExists(FS, inDir); !ok {
		preflight = multierror.Append(preflight,
			fmt.Errorf("%w: input directory %q (--input-dir) does not exist", ErrPath, inDir))
	}

	if barcodeFile != "" {
		barcodeFile, err = absPath(barcodeFile)
		if err != nil {
			return nil, nil, errors.Join(ErrPrepare, err)
		}

		if ok, _ := afero.Exists(FS, barcodeFile); !ok {
			preflight = multierror.Append(preflight,
				fmt.Errorf("%w: barcode file %q (--barcode-file) does not exist", ErrPath, barcodeFile))
		}
	}

	if cellNames != "" {
		cellNames, err = absPath(cellNames)
		if err != nil {
			return nil, nil, errors.Join(ErrPrepare, err)
		}

		if ok, _ := afero.Exists(FS, cellNames); !ok {
			preflight = multierror.Append(preflight,
				fmt.Errorf("%w: cell names file %q (--cell-names) does not exist", ErrPath, cellNames))
		}
	}

	if err := preflight.ErrorOrNil(); err != nil {
		return nil, nil, err
	}

	lctx := &LaunchContext{
		RunID:         NewRunID(),
		InputDir:      inDir,
		OutputDir:     outDir,
		ClusterLogDir: filepath.Join(outDir, ClusterLogDirName),
		ConfigFile:    filepath.Join(outDir, ConfigFileName),
		RunLog:        filepath.Join(outDir, RunLogName),
		BarcodeFile:   barcodeFile,
	}

	if err := FS.MkdirAll(lctx.ClusterLogDir, sevenFiveFive); err != nil {
		return nil, nil, errors.Join(ErrPrepare, err)
	}

	if lctx.BarcodeFile == "" {
		bc, err := materializeBarcodeFile(outDir)
		if err != nil {
			return nil, nil, errors.Join(ErrPrepare, err)
		}

		lctx.BarcodeFile = bc

		logger.Debug("substituted packaged barcode whitelist", "path", bc)
	}

	effective := cfg.Clone()
	effective.Set("input_dir", lctx.InputDir)
	effective.Set("output_dir", lctx.OutputDir)
	effective.Set("barcode_file", lctx.BarcodeFile)

	if cellNames != "" {
		effective.Set("cell_names", cellNames)
	}

	if err := configstore.Save(lctx.ConfigFile, effective); err != nil {
		return nil, nil, errors.Join(ErrPrepare, err)
	}

	tempDir, err := makeTempDir(opts.TempDirBase, lctx.RunID)
	if err != nil {
		return nil, nil, errors.Join(ErrPrepare, err)
	}

	lctx.TempDir = tempDir

	logger.Debug("run environment prepared",
		"run_id", lctx.RunID,
		"output_dir", lctx.OutputDir,
		"temp_dir", lctx.TempDir,
	)

	return lctx, effective, nil
}

// Cleanup removes the run's temporary working directory. Removal failures
// never fail the run; they are logged and forgotten.
func Cleanup(ctx context.Context, lctx *LaunchContext) {
	if lctx == nil || lctx.TempDir == "" {
		return
	}

	if err := FS.RemoveAll(lctx.TempDir); err != nil {
		ctxlog.Warn(ctx, "failed to remove temporary directory",
			"path", lctx.TempDir, "error", err.Error())
		return
	}

	ctxlog.Debug(ctx, "removed temporary directory", "path", lctx.TempDir)
}

func materializeBarcodeFile(outDir string) (string, error) {
	auxDir := filepath.Join(outDir, AuxDirName)
	if err := FS.MkdirAll(auxDir, sevenFiveFive); err != nil {
		return "", err
	}

	path := filepath.Join(auxDir, refdata.BarcodeFileName)
	if err := afero.WriteFile(FS, path, refdata.BarcodeFile(), sixFourFour); err != nil {
		return "", err
	}

	return path, nil
}

func makeTempDir(base, runID string) (string, error) {
	if base == "" {
		base = TempDirPath()
	}

	base, err := absPath(base)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(base, tempDirPrefix+runID)
	if err := FS.MkdirAll(dir, sevenFiveFive); err != nil {
		return "", err
	}

	return dir, nil
}

func absPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	return filepath.Abs(expanded)
}
