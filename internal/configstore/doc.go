// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package configstore loads, merges and persists the layered YAML
// configuration documents that drive a pipeline run. Documents merge
// recursively, later sources taking precedence key by key.
package configstore
