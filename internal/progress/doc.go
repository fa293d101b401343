// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress provides real-time progress reporting for supervised
// engine runs. Engine output is parsed into structured events that drive
// the TUI and structured logging while the workflow executes.
package progress
