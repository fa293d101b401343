// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package workspace prepares the isolated environment a pipeline run
// executes in: it validates the input paths, creates the output and cluster
// log directories, persists the effective configuration document, creates
// the unique temporary working directory and maintains the run log.
//
// Preparation is all-or-nothing: no directory is created and no file is
// written unless every validation passes.
package workspace
