// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// DefaultMaxBuffer is the default cap on the captured output buffer.
const DefaultMaxBuffer = 8 * 1024 * 1024 // 8MB

// LastLineTeeReader wraps an io.Reader and captures the output while
// tracking the last complete line for progress display purposes. The
// captured buffer is bounded: once it exceeds the configured maximum the
// oldest data is discarded so that only the tail is retained.
// It is safe for concurrent use.
type LastLineTeeReader struct {
	reader         io.Reader
	fullBuffer     *bytes.Buffer
	maxBuffer      int
	truncated      bool
	lastLine       string
	partialBuilder strings.Builder // Buffer for incomplete lines
	mu             sync.RWMutex
}

// NewLastLineTeeReader creates a new LastLineTeeReader that wraps the given
// reader. The captured buffer is capped at DefaultMaxBuffer bytes.
func NewLastLineTeeReader(r io.Reader) *LastLineTeeReader {
	return NewLastLineTeeReaderSize(r, DefaultMaxBuffer)
}

// NewLastLineTeeReaderSize creates a new LastLineTeeReader with an explicit
// cap on the captured buffer. A maxBuffer of zero or less disables capture
// trimming.
func NewLastLineTeeReaderSize(r io.Reader, maxBuffer int) *LastLineTeeReader {
	return &LastLineTeeReader{
		reader:     r,
		fullBuffer: &bytes.Buffer{},
		maxBuffer:  maxBuffer,
	}
}

// Read implements io.Reader. It reads from the underlying reader and updates
// both the captured buffer and the last line tracking.
func (lt *LastLineTeeReader) Read(p []byte) (n int, err error) {
	n, err = lt.reader.Read(p)
	if n > 0 {
		lt.mu.Lock()
		defer lt.mu.Unlock()

		// Write to the captured buffer, then trim it back to the tail
		lt.fullBuffer.Write(p[:n])
		lt.trimBuffer()

		// Process the new data for last line tracking
		lt.processNewData(string(p[:n]))
	}

	return n, err //nolint:wrapcheck
}

// trimBuffer discards the oldest captured data once the buffer exceeds the
// configured maximum. Must be called with the write lock held.
func (lt *LastLineTeeReader) trimBuffer() {
	if lt.maxBuffer <= 0 || lt.fullBuffer.Len() <= lt.maxBuffer {
		return
	}

	lt.fullBuffer.Next(lt.fullBuffer.Len() - lt.maxBuffer)
	lt.truncated = true
}

// processNewData updates the last line based on new data.
// Must be called with the write lock held.
func (lt *LastLineTeeReader) processNewData(data string) {
	// Combine any existing partial line with new data
	lt.partialBuilder.WriteString(data)
	combined := lt.partialBuilder.String()

	// Split by newlines
	lines := strings.Split(combined, "\n")

	if len(lines) == 1 {
		// No newlines found, partial line is already updated in builder
		return
	}

	// We have at least one complete line
	// The last element is either empty (if data ended with \n) or a partial line
	if data[len(data)-1] == '\n' {
		// Data ended with newline, so last element is empty
		lt.lastLine = lines[len(lines)-2]
		lt.partialBuilder.Reset()
	} else {
		// Data didn't end with newline, so last element is partial
		lt.lastLine = lines[len(lines)-2]
		lt.partialBuilder.Reset()
		lt.partialBuilder.WriteString(lines[len(lines)-1])
	}
}

// GetLastLine returns the last complete line that was read.
// Returns an empty string if no complete lines have been read yet.
// This method is safe for concurrent use.
// If maxLength > 0, it truncates the last line to that length and appends "..." if it exceeds that length.
func (lt *LastLineTeeReader) GetLastLine(maxLength int) string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	var result string
	result = lt.lastLine
	if maxLength > 0 && len(result) > maxLength {
		result = result[:maxLength-3] + "..."
	}

	return result
}

// GetFullBufferBytes returns a copy of the captured data. When the cap has
// been exceeded this is the tail of the output, not the whole of it.
// This method is safe for concurrent use.
func (lt *LastLineTeeReader) GetFullBufferBytes() []byte {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return bytes.Clone(lt.fullBuffer.Bytes())
}

// Truncated reports whether older data has been discarded to honour the
// buffer cap. This method is safe for concurrent use.
func (lt *LastLineTeeReader) Truncated() bool {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.truncated
}

// GetPartialLine returns the current partial line (data after the last newline).
// This is useful for debugging or showing in-progress output.
// This method is safe for concurrent use.
func (lt *LastLineTeeReader) GetPartialLine() string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.partialBuilder.String()
}

// Reset clears all internal buffers and resets the reader to its initial state.
// The underlying reader is not affected.
// This method is safe for concurrent use.
func (lt *LastLineTeeReader) Reset() {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.fullBuffer.Reset()
	lt.truncated = false
	lt.lastLine = ""
	lt.partialBuilder.Reset()
}
