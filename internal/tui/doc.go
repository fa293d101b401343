// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time terminal user interface for watching a
// supervised engine run. It renders a progress bar driven by the engine's
// step reports, the rule currently executing, the last output line, elapsed
// time and the final outcome.
//
// Keyboard quit requests while the engine is running are forwarded to it as
// stop requests; a repeated request escalates to a kill, the same way a
// repeated termination signal does outside the TUI.
package tui
