// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mpitest/internal/logging"
)

// memorySink is a Sink that accumulates logs to an in-memory buffer.
type memorySink struct {
	mu   sync.Mutex
	msgs []string
}

func (ms *memorySink) Log(msg string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.msgs = append(ms.msgs, msg)
}

func (ms *memorySink) Get() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.msgs...)
}

func TestSinkLoggerLevel(t *testing.T) {
	var sink memorySink
	logger := logging.NewSinkLogger(logging.LevelInfo, false, &sink)
	logger.Log(logging.LevelInfo, time.Time{}, "foo")
	logger.Log(logging.LevelDebug, time.Time{}, "bar")
	logger.Log(logging.LevelInfo, time.Time{}, "baz")

	if diff := cmp.Diff(sink.Get(), []string{"foo", "baz"}); diff != "" {
		t.Errorf("Messages mismatch (-got +want):\n%s", diff)
	}
}

func TestSinkLoggerTimestamp(t *testing.T) {
	var sink memorySink
	logger := logging.NewSinkLogger(logging.LevelDebug, true, &sink)
	logger.Log(logging.LevelInfo, time.Date(2026, 10, 19, 1, 2, 3, 4000, time.UTC), "foo")

	want := []string{"2026-10-19T01:02:03.000004Z foo"}
	if diff := cmp.Diff(sink.Get(), want); diff != "" {
		t.Errorf("Messages mismatch (-got +want):\n%s", diff)
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := logging.NewWriterSink(&buf)
	sink.Log("foo")
	sink.Log("bar")

	if got, want := buf.String(), "foo\nbar\n"; got != want {
		t.Errorf("Written %q; want %q", got, want)
	}
}
