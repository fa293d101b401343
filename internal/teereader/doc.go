// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package teereader provides a TeeReader implementation that captures the last
// line of output while retaining a bounded tail of everything read. This is
// useful for displaying progress information from a long-running engine while
// keeping recent output available for failure diagnostics.
package teereader
