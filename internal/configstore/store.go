// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package configstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// FS is the filesystem used by the package. It can be replaced for testing.
var FS = afero.NewOsFs()

var (
	// ErrLoad is returned when a configuration document cannot be read or parsed.
	ErrLoad = errors.New("failed to load configuration document")
	// ErrSave is returned when a configuration document cannot be written.
	ErrSave = errors.New("failed to save configuration document")
)

const fileMode = os.FileMode(0o644)

// LoadBytes parses a YAML configuration document.
func LoadBytes(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrLoad, err)
	}

	return doc, nil
}

// LoadFile reads and parses a YAML configuration document from the filesystem.
func LoadFile(path string) (Document, error) {
	data, err := afero.ReadFile(FS, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrLoad, path, err)
	}

	return LoadBytes(data)
}

// Save serializes the document to YAML and writes it to path, replacing any
// existing file.
func Save(path string, doc Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Join(ErrSave, err)
	}

	if err := afero.WriteFile(FS, path, data, fileMode); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrSave, path, err)
	}

	return nil
}
