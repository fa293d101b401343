// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package references implements the references command, which lists the
// reference genomes packaged with the launcher.
package references

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/refdata"
)

// ErrWrite is returned when the reference list cannot be written.
var ErrWrite = errors.New("failed to write references")

// ReferencesCmd is the command that lists the packaged reference genomes.
var ReferencesCmd = &cli.Command{
	Name:   "references",
	Writer: os.Stdout,
	Description: `List the reference genomes packaged with stoker.

Any of these short names can be passed to 'stoker run' or 'stoker config'
instead of a reference document.`,
	Usage:  "stoker references",
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running references command")

	if _, err := fmt.Fprintf(cmd.Writer, "Packaged references:\n\n"); err != nil {
		return errors.Join(ErrWrite, err)
	}

	for _, name := range refdata.References() {
		if _, err := fmt.Fprintf(cmd.Writer, "- %s%s\n", name, organism(name)); err != nil {
			return errors.Join(ErrWrite, err)
		}
	}

	return nil
}

// organism returns a parenthesised organism name when the reference document
// carries one.
func organism(name string) string {
	doc, err := refdata.Lookup(name)
	if err != nil {
		return ""
	}

	org, ok := doc.String("reference.organism")
	if !ok || org == "" {
		return ""
	}

	return fmt.Sprintf(" (%s)", org)
}
