// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"bytes"
	"context"
	"sync"
)

// Writer is an io.Writer that emits every complete line written to it as a
// log entry on a context. It is used to forward launcher output, which
// arrives in arbitrary chunks from several ranks, into a unit's log.
type Writer struct {
	ctx   context.Context
	level Level

	mu  sync.Mutex
	buf []byte
}

// NewWriter creates a Writer logging to ctx at level.
// Close must be called to flush a trailing partial line.
func NewWriter(ctx context.Context, level Level) *Writer {
	return &Writer{ctx: ctx, level: level}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emitLocked(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Close flushes a trailing line that was not terminated by a newline.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emitLocked(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *Writer) emitLocked(line []byte) {
	emit(w.ctx, w.level, string(bytes.TrimSuffix(line, []byte("\r"))))
}
