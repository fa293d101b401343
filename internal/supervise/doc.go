// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package supervise runs the workflow engine as a child process and watches
// over it until it exits. It mirrors engine output to the configured writers,
// parses it into progress events, forwards operating system signals to the
// engine, and terminates surviving descendant processes when an interrupted
// run did not end in success.
package supervise
