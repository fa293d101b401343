// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import "slices"

// CommandSpec is a fully rendered engine invocation.
type CommandSpec struct {
	// Path is the resolved absolute path of the engine executable.
	Path string
	// Args are the arguments to the command, not including the executable
	// name itself.
	Args []string
	// Dir is the working directory the engine runs in.
	Dir string
	// Env holds environment additions applied over the inherited
	// environment.
	Env map[string]string
}

// CommandLine returns the executable path followed by the arguments, for
// display and for the run log.
func (s *CommandSpec) CommandLine() []string {
	return slices.Concat([]string{s.Path}, s.Args)
}
