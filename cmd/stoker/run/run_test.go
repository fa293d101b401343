// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/matt-FFFFFF/stoker/internal/configstore"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/engine"
	"github.com/matt-FFFFFF/stoker/internal/refdata"
	"github.com/matt-FFFFFF/stoker/internal/supervise"
	"github.com/matt-FFFFFF/stoker/internal/workspace"
)

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx := ctxlog.New(t.Context(), ctxlog.DefaultLogger)
	ctxlog.LevelVar.Set(slog.LevelDebug)

	return ctx
}

func TestFlagDocument(t *testing.T) {
	var doc configstore.Document

	// Fresh flag instances so parse state cannot leak between tests.
	cmd := &cli.Command{
		Name: "capture",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: jobsFlag},
			&cli.IntFlag{Name: binSizeFlag},
			&cli.BoolFlag{Name: localFlag},
			&cli.BoolFlag{Name: trimFlag},
			&cli.StringFlag{Name: engineOptsFlag},
			&cli.StringFlag{Name: tmpdirFlag},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			doc = flagDocument(cmd)
			return nil
		},
	}

	err := cmd.Run(t.Context(), []string{
		"capture", "--jobs", "8", "--local", "--engine-opts=--rerun-incomplete",
	})
	require.NoError(t, err)

	jobs, ok := doc.Int("jobs")
	assert.True(t, ok, "set flags should be captured")
	assert.Equal(t, 8, jobs)

	local, ok := doc.Bool("local")
	assert.True(t, ok)
	assert.True(t, local)

	opts, ok := doc.String("engine_options")
	assert.True(t, ok)
	assert.Equal(t, "--rerun-incomplete", opts)

	_, ok = doc.Lookup("trim")
	assert.False(t, ok, "unset flags should not be captured")

	_, ok = doc.Lookup("bw_binsize")
	assert.False(t, ok)

	_, ok = doc.Lookup("tempdir")
	assert.False(t, ok)
}

func TestResolveReference_Packaged(t *testing.T) {
	doc, err := resolveReference(testContext(t), "GRCh38")
	require.NoError(t, err)

	id, ok := doc.String("reference.id")
	assert.True(t, ok, "packaged reference should carry its id")
	assert.Equal(t, "GRCh38", id)
}

func TestResolveReference_Document(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := []byte("reference:\n  id: custom\n  organism: Danio rerio\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	doc, err := resolveReference(testContext(t), path)
	require.NoError(t, err)

	id, ok := doc.String("reference.id")
	assert.True(t, ok)
	assert.Equal(t, "custom", id)
}

func TestResolveReference_Missing(t *testing.T) {
	_, err := resolveReference(testContext(t), filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReference)
}

func TestLoadUserConfig(t *testing.T) {
	ctx := testContext(t)

	doc, err := loadUserConfig(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, doc, "no configfile should yield no layer")

	path := filepath.Join(t.TempDir(), "user.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: 3\ntrim: true\n"), 0o644))

	doc, err = loadUserConfig(ctx, path)
	require.NoError(t, err)

	jobs, ok := doc.Int("jobs")
	assert.True(t, ok)
	assert.Equal(t, 3, jobs)

	_, err = loadUserConfig(ctx, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigFile)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		outcome supervise.Outcome
		want    int
	}{
		{
			name:    "mirrors engine exit code",
			outcome: supervise.Outcome{State: supervise.StateFailed, ExitCode: 3},
			want:    3,
		},
		{
			name:    "killed by signal",
			outcome: supervise.Outcome{State: supervise.StateInterrupted, ExitCode: -1},
			want:    1,
		},
		{
			name:    "never exits zero",
			outcome: supervise.Outcome{State: supervise.StateFailed, ExitCode: 0},
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.outcome))
		})
	}
}

func TestRunCmd_LaunchesEngine(t *testing.T) {
	tmp := t.TempDir()
	inDir := filepath.Join(tmp, "fastq")
	outDir := filepath.Join(tmp, "results")
	tempBase := filepath.Join(tmp, "tmp")
	require.NoError(t, os.MkdirAll(inDir, 0o755))
	require.NoError(t, os.MkdirAll(tempBase, 0o755))

	stubs := gostub.Stub(&engine.LookPath, func(string) (string, error) {
		return "/bin/echo", nil
	})
	defer stubs.Reset()

	err := RunCmd.Run(testContext(t), []string{
		"run",
		"--input-dir", inDir,
		"--output-dir", outDir,
		"--tmpdir", tempBase,
		"--local",
		"--jobs", "2",
		"GRCh38",
	})
	require.NoError(t, err, "run should succeed with a stubbed engine")

	cfg, err := configstore.LoadFile(filepath.Join(outDir, workspace.ConfigFileName))
	require.NoError(t, err, "effective configuration should be persisted")

	id, _ := cfg.String("reference.id")
	assert.Equal(t, "GRCh38", id, "reference layer should be merged in")

	jobs, _ := cfg.Int("jobs")
	assert.Equal(t, 2, jobs, "command line should override the packaged default")

	local, _ := cfg.Bool("local")
	assert.True(t, local)

	barcode, _ := cfg.String("barcode_file")
	assert.Equal(t, filepath.Join(outDir, workspace.AuxDirName, refdata.BarcodeFileName), barcode,
		"packaged barcode whitelist should be substituted")
	assert.FileExists(t, barcode)

	assert.DirExists(t, filepath.Join(outDir, workspace.ClusterLogDirName))

	logData, err := os.ReadFile(filepath.Join(outDir, workspace.RunLogName))
	require.NoError(t, err, "run log should be written")
	assert.Contains(t, string(logData), "invoked:")
	assert.Contains(t, string(logData), "TMPDIR=")

	entries, err := os.ReadDir(tempBase)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary run directory should be cleaned up")
}
