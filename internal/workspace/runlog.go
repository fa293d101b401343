// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package workspace

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// RunLogName is the per-output-directory log of launcher invocations.
const RunLogName = "stoker.run.log"

// ErrRunLog is returned when the run log cannot be appended to.
var ErrRunLog = errors.New("failed to append to run log")

// Now returns the timestamp recorded in the run log. Replaceable for tests.
var Now = time.Now

// AppendRunLog records an invocation in the output directory's run log
// before the engine is spawned: the run ID, the launcher's own command line
// and the rendered engine command with any environment additions. The log is
// append-only so earlier runs stay visible.
func AppendRunLog(lctx *LaunchContext, argv []string, command []string, env map[string]string) error {
	f, err := FS.OpenFile(lctx.RunLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, sixFourFour)
	if err != nil {
		return errors.Join(ErrRunLog, err)
	}

	defer f.Close() //nolint:errcheck

	ts := Now().UTC().Format(time.RFC3339)

	var b strings.Builder

	fmt.Fprintf(&b, "[%s] run %s\n", ts, lctx.RunID)
	fmt.Fprintf(&b, "[%s]   invoked: %s\n", ts, strings.Join(argv, " "))
	fmt.Fprintf(&b, "[%s]   command: %s\n", ts, strings.Join(command, " "))

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, "[%s]   env: %s=%s\n", ts, k, env[k])
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return errors.Join(ErrRunLog, err)
	}

	return nil
}
