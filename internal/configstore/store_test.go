// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package configstore

import (
	"testing"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc, err := LoadBytes([]byte("jobs: 5\ncluster:\n  queue: all.q\n"))
		require.NoError(t, err)

		jobs, ok := doc.Int("jobs")
		require.True(t, ok)
		assert.Equal(t, 5, jobs)

		queue, ok := doc.String("cluster.queue")
		require.True(t, ok)
		assert.Equal(t, "all.q", queue)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadBytes([]byte("jobs: [unclosed"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLoad)
	})
}

func TestLoadFile(t *testing.T) {
	defer gostub.Stub(&FS, afero.NewMemMapFs()).Reset()

	require.NoError(t, afero.WriteFile(FS, "/etc/stoker/defaults.yaml", []byte("jobs: 3\n"), 0o644))

	t.Run("existing file", func(t *testing.T) {
		doc, err := LoadFile("/etc/stoker/defaults.yaml")
		require.NoError(t, err)

		jobs, ok := doc.Int("jobs")
		require.True(t, ok)
		assert.Equal(t, 3, jobs)
	})

	t.Run("missing file names the path", func(t *testing.T) {
		_, err := LoadFile("/etc/stoker/absent.yaml")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLoad)
		assert.Contains(t, err.Error(), "/etc/stoker/absent.yaml")
	})
}

func TestSave(t *testing.T) {
	defer gostub.Stub(&FS, afero.NewMemMapFs()).Reset()

	doc := Document{
		"jobs": 5,
		"cluster": map[string]any{
			"queue": "all.q",
		},
	}

	require.NoError(t, Save("/out/config.yaml", doc))

	reloaded, err := LoadFile("/out/config.yaml")
	require.NoError(t, err)

	queue, ok := reloaded.String("cluster.queue")
	require.True(t, ok)
	assert.Equal(t, "all.q", queue)

	t.Run("overwrites a previous document", func(t *testing.T) {
		require.NoError(t, Save("/out/config.yaml", Document{"jobs": 9}))

		reloaded, err := LoadFile("/out/config.yaml")
		require.NoError(t, err)

		jobs, ok := reloaded.Int("jobs")
		require.True(t, ok)
		assert.Equal(t, 9, jobs)

		_, ok = reloaded.Lookup("cluster")
		assert.False(t, ok, "overwritten document must not retain old keys")
	})
}

func TestFetchLocal(t *testing.T) {
	defer gostub.Stub(&FS, afero.NewMemMapFs()).Reset()

	require.NoError(t, afero.WriteFile(FS, "/configs/user.yaml", []byte("verbose: true\n"), 0o644))

	t.Run("existing local path", func(t *testing.T) {
		data, err := Fetch(t.Context(), "/configs/user.yaml")
		require.NoError(t, err)
		assert.Equal(t, "verbose: true\n", string(data))
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := Fetch(t.Context(), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
	})
}
