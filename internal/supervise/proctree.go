// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervise

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matt-FFFFFF/stoker/internal/ctxlog"
	"github.com/shirou/gopsutil/v4/process"
)

// ErrProcessTree is returned when descendant processes could not be
// enumerated or terminated.
var ErrProcessTree = errors.New("process tree operation failed")

var (
	// ListDescendants enumerates the transitive children of pid at the time
	// of the call. It is a variable to allow tests to substitute a fake.
	ListDescendants = listDescendants
	// TerminateDescendant asks a single descendant process to terminate,
	// skipping processes that have already exited. It is a variable to allow
	// tests to substitute a fake.
	TerminateDescendant = terminateDescendant
)

func listDescendants(ctx context.Context, pid int32) ([]*process.Process, error) {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", ErrProcessTree, pid, err)
	}

	var descendants []*process.Process

	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		children, err := p.ChildrenWithContext(ctx)
		if err != nil {
			// Leaf processes report the absence of children as an error.
			continue
		}

		descendants = append(descendants, children...)
		queue = append(queue, children...)
	}

	return descendants, nil
}

func terminateDescendant(ctx context.Context, p *process.Process) error {
	running, err := p.IsRunningWithContext(ctx)
	if err == nil && !running {
		return nil
	}

	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("%w: pid %d: %v", ErrProcessTree, p.Pid, err)
	}

	return nil
}

// descendantTracker records the engine's descendant processes the first time
// a stop condition is seen. The snapshot must be taken while the engine is
// still alive: once it exits, its children are reparented and can no longer
// be found by walking the process tree.
type descendantTracker struct {
	mu    sync.Mutex
	taken bool
	procs []*process.Process
}

// snapshot captures the descendants of pid exactly once. Later calls are
// no-ops.
func (d *descendantTracker) snapshot(ctx context.Context, pid int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.taken {
		return
	}

	d.taken = true

	procs, err := ListDescendants(ctx, int32(pid))
	if err != nil {
		ctxlog.Warn(ctx, "could not enumerate descendant processes", "pid", pid, "error", err)
		return
	}

	ctxlog.Debug(ctx, "captured descendant processes", "pid", pid, "count", len(procs))

	d.procs = procs
}

// survivors returns the processes captured by snapshot, if any.
func (d *descendantTracker) survivors() []*process.Process {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.procs
}

// stopDescendants sends a termination request to every process captured by
// the tracker. Failures are logged and ignored: a descendant that cannot be
// terminated must never fail the run itself.
func stopDescendants(ctx context.Context, tracker *descendantTracker) {
	procs := tracker.survivors()
	if len(procs) == 0 {
		return
	}

	ctxlog.Info(ctx, "terminating surviving descendant processes", "count", len(procs))

	for _, p := range procs {
		if err := TerminateDescendant(ctx, p); err != nil {
			ctxlog.Warn(ctx, "failed to terminate descendant process", "pid", p.Pid, "error", err)
		}
	}
}
