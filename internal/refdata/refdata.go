// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package refdata

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/matt-FFFFFF/stoker/internal/configstore"
)

//go:embed data
var dataFS embed.FS

const (
	defaultsFile  = "data/defaults.yaml"
	referencesDir = "data/references"
	yamlExt       = ".yaml"

	// BarcodeFileName is the name of the packaged default cell barcode
	// whitelist, substituted when no barcode file option is given.
	BarcodeFileName = "celseq_barcodes.96.txt"
)

// ErrUnknownReference is returned when a reference short name is not packaged.
var ErrUnknownReference = errors.New("unknown reference")

// Defaults returns the packaged default configuration document. The packaged
// data is part of the binary, so a parse failure here is a build defect and
// is returned rather than papered over.
func Defaults() (configstore.Document, error) {
	data, err := dataFS.ReadFile(defaultsFile)
	if err != nil {
		return nil, errors.Join(configstore.ErrLoad, err)
	}

	return configstore.LoadBytes(data)
}

// References returns the sorted short names of the packaged reference
// documents.
func References() []string {
	entries, err := dataFS.ReadDir(referencesDir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), yamlExt) {
			continue
		}

		names = append(names, strings.TrimSuffix(e.Name(), yamlExt))
	}

	sort.Strings(names)

	return names
}

// Lookup returns the packaged reference document for the given short name.
func Lookup(name string) (configstore.Document, error) {
	data, err := dataFS.ReadFile(path.Join(referencesDir, name+yamlExt))
	if err != nil {
		return nil, fmt.Errorf("%w: %q (known references: %s)",
			ErrUnknownReference, name, strings.Join(References(), ", "))
	}

	return configstore.LoadBytes(data)
}

// IsReference reports whether name is a packaged reference short name.
func IsReference(name string) bool {
	_, err := dataFS.ReadFile(path.Join(referencesDir, name+yamlExt))
	return err == nil
}

// BarcodeFile returns the packaged default cell barcode whitelist.
func BarcodeFile() []byte {
	data, err := dataFS.ReadFile(path.Join("data", BarcodeFileName))
	if err != nil {
		// The file is embedded at build time; missing means a broken build.
		panic(err)
	}

	return data
}
