// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCmd_Defaults(t *testing.T) {
	buf := new(bytes.Buffer)
	stubs := gostub.Stub(&ConfigCmd.Writer, io.Writer(buf))
	defer stubs.Reset()

	err := ConfigCmd.Run(t.Context(), []string{"config"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "pipeline:")
	assert.Contains(t, out, "jobs: 5")
	assert.NotContains(t, out, "GRCh38", "defaults carry no reference identity")
}

func TestConfigCmd_Reference(t *testing.T) {
	buf := new(bytes.Buffer)
	stubs := gostub.Stub(&ConfigCmd.Writer, io.Writer(buf))
	defer stubs.Reset()

	err := ConfigCmd.Run(t.Context(), []string{"config", "GRCh38"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "id: GRCh38", "reference document should be merged over the defaults")
	assert.Contains(t, out, "organism: Homo sapiens")
	assert.Contains(t, out, "jobs: 5", "defaults should survive the merge")
}

func TestConfigCmd_JSON(t *testing.T) {
	buf := new(bytes.Buffer)
	stubs := gostub.Stub(&ConfigCmd.Writer, io.Writer(buf))
	defer stubs.Reset()

	err := ConfigCmd.Run(t.Context(), []string{"config", "--json", "GRCh38"})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{"), "json output should be a single object")
	assert.Contains(t, out, `"pipeline"`)
	assert.Contains(t, out, `"GRCh38"`)
}
