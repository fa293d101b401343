// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package engine renders the workflow engine invocation for a prepared run.
// The invocation is a structured command, an argument vector plus
// environment additions, never a shell string.
package engine
