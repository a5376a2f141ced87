// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mpitest/internal/logging"
	"mpitest/internal/logging/loggingtest"
)

func TestContextLogging(t *testing.T) {
	// Logging to a context without a logger is a no-op.
	logging.Info(context.Background(), "dropped")

	logger := loggingtest.NewLogger(t, logging.LevelDebug)
	ctx := logging.AttachLogger(context.Background(), logger)
	logging.Info(ctx, "a", "b")
	logging.Infof(ctx, "np=%d", 4)
	logging.Debug(ctx, "c")
	logging.Debugf(ctx, "%s!", "d")
	logging.Info(logging.SetLogPrefix(ctx, "[np=2] "), "started")

	want := []string{"ab", "np=4", "c", "d!", "[np=2] started"}
	if diff := cmp.Diff(logger.Logs(), want); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}

func TestAttachLoggerPropagation(t *testing.T) {
	parent := loggingtest.NewLogger(t, logging.LevelInfo)
	child := loggingtest.NewLogger(t, logging.LevelInfo)
	isolated := loggingtest.NewLogger(t, logging.LevelInfo)

	ctx := logging.AttachLogger(context.Background(), parent)
	logging.Info(logging.AttachLogger(ctx, child), "propagated")
	logging.Info(logging.AttachLoggerNoPropagation(ctx, isolated), "isolated")

	if diff := cmp.Diff(parent.Logs(), []string{"propagated"}); diff != "" {
		t.Errorf("Parent logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(child.Logs(), []string{"propagated"}); diff != "" {
		t.Errorf("Child logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(isolated.Logs(), []string{"isolated"}); diff != "" {
		t.Errorf("Isolated logs mismatch (-got +want):\n%s", diff)
	}
}

func TestWriter(t *testing.T) {
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	ctx := logging.AttachLogger(context.Background(), logger)

	w := logging.NewWriter(ctx, logging.LevelInfo)
	for _, chunk := range []string{"RANK 0 re", "ached\nRANK 1 reached\r\n", "", "tail"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal("Write failed: ", err)
		}
	}
	if diff := cmp.Diff(logger.Logs(), []string{"RANK 0 reached", "RANK 1 reached"}); diff != "" {
		t.Errorf("Logs before Close mismatch (-got +want):\n%s", diff)
	}

	w.Close()
	want := []string{"RANK 0 reached", "RANK 1 reached", "tail"}
	if diff := cmp.Diff(logger.Logs(), want); diff != "" {
		t.Errorf("Logs after Close mismatch (-got +want):\n%s", diff)
	}
}
