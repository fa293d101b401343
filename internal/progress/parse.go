// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The engine reports workflow progress as plain console lines, mostly on
// stderr. ParseLine recognizes the step and percentage lines and turns
// everything else into output events.
var (
	stepsDoneRe  = regexp.MustCompile(`^(\d+) of (\d+) steps \((\d+(?:\.\d+)?)%\) done$`)
	stepStartRe  = regexp.MustCompile(`^(?:local)?(?:rule|checkpoint) ([A-Za-z_][A-Za-z0-9_]*):$`)
	stepFailedRe = regexp.MustCompile(`^Error in (?:local)?rule ([A-Za-z_][A-Za-z0-9_]*):?$`)
)

const percentScale = 100.0

// ParseLine classifies a single line of engine output into a progress event.
// Unrecognized lines become output events so nothing is lost.
func ParseLine(line string, isStderr bool) Event {
	now := time.Now()
	trimmed := strings.TrimRight(line, "\r\n")

	if m := stepsDoneRe.FindStringSubmatch(trimmed); m != nil {
		done, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		percent, _ := strconv.ParseFloat(m[3], 64)

		if percent == 0 && total > 0 {
			percent = float64(done) / float64(total) * percentScale
		}

		return Event{
			Type:      EventStepsDone,
			Message:   fmt.Sprintf("%d of %d steps done", done, total),
			Timestamp: now,
			Data: EventData{
				Done:    done,
				Total:   total,
				Percent: percent,
			},
		}
	}

	if m := stepStartRe.FindStringSubmatch(trimmed); m != nil {
		return Event{
			Type:      EventStepStarted,
			Message:   "step " + m[1] + " started",
			Timestamp: now,
			Data:      EventData{Step: m[1]},
		}
	}

	if m := stepFailedRe.FindStringSubmatch(trimmed); m != nil {
		return Event{
			Type:      EventStepFailed,
			Message:   "step " + m[1] + " failed",
			Timestamp: now,
			Data:      EventData{Step: m[1]},
		}
	}

	return Event{
		Type:      EventOutput,
		Message:   trimmed,
		Timestamp: now,
		Data: EventData{
			OutputLine: trimmed,
			IsStderr:   isStderr,
		},
	}
}
