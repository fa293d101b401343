// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config implements the config command, which renders the effective
// configuration a run would use so it can be inspected beforehand.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/TylerBrock/colorjson"
	"github.com/goccy/go-yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/matt-FFFFFF/stoker/internal/configstore"
	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/matt-FFFFFF/stoker/internal/refdata"
)

const (
	referenceArg = "reference"

	jsonFlag = "json"
)

// ErrWrite is returned when the rendered configuration cannot be written.
var ErrWrite = errors.New("failed to write configuration")

var jsonFormatter = colorjson.NewFormatter()

func init() {
	jsonFormatter.Indent = 2
	jsonFormatter.DisabledColor = !term.IsTerminal(int(os.Stdout.Fd()))
}

// ConfigCmd is the command that prints the packaged default configuration,
// optionally merged with a reference document.
var ConfigCmd = &cli.Command{
	Name:   "config",
	Writer: os.Stdout,
	Description: `Print the effective configuration as a run would see it.

Without an argument the packaged defaults are shown. With a REFERENCE
argument the reference document is merged over the defaults first, exactly
as 'stoker run' would do it.`,
	Usage: "stoker config [REFERENCE]",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: referenceArg,
		},
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:        jsonFlag,
			Usage:       "Render as JSON instead of YAML",
			DefaultText: "false",
			OnlyOnce:    true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running config command")

	defaults, err := refdata.Defaults()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load packaged defaults: %s", err.Error()), 1)
	}

	layers := []configstore.Document{defaults}

	if reference := cmd.StringArg(referenceArg); reference != "" {
		refDoc, err := resolveReference(ctx, reference)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to resolve reference: %s", err.Error()), 1)
		}

		layers = append(layers, refDoc)
	}

	cfg := configstore.Resolve(layers...)

	if cmd.Bool(jsonFlag) {
		return renderJSON(cmd, cfg)
	}

	return renderYAML(cmd, cfg)
}

// resolveReference returns the reference layer for a packaged short name or
// a go-getter document source.
func resolveReference(ctx context.Context, reference string) (configstore.Document, error) {
	if refdata.IsReference(reference) {
		return refdata.Lookup(reference)
	}

	data, err := configstore.Fetch(ctx, reference)
	if err != nil {
		return nil, err
	}

	return configstore.LoadBytes(data)
}

func renderYAML(cmd *cli.Command, cfg configstore.Document) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to render configuration: %s", err.Error()), 1)
	}

	if _, err := cmd.Writer.Write(data); err != nil {
		return errors.Join(ErrWrite, err)
	}

	return nil
}

// renderJSON prints the document through the colorizing formatter. The
// formatter only walks plain map[string]interface{} values, so the document
// is round-tripped through encoding/json first.
func renderJSON(cmd *cli.Command, cfg configstore.Document) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to render configuration: %s", err.Error()), 1)
	}

	plain := map[string]any{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to render configuration: %s", err.Error()), 1)
	}

	out, err := jsonFormatter.Marshal(plain)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to render configuration: %s", err.Error()), 1)
	}

	if _, err := fmt.Fprintln(cmd.Writer, string(out)); err != nil {
		return errors.Join(ErrWrite, err)
	}

	return nil
}
