// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the mpitest executable, used to inspect process
// count declarations and to run launches outside of go test.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"mpitest/internal/logging"
)

const (
	signalChannelSize = 3 // capacity of channel used to intercept signals
)

// Version is the version info of this command. It is filled in at link time.
var Version = "<unknown>"

// installSignalHandler cancels ctx on the first SIGINT or SIGTERM so that
// running launches tear down their process trees, and exits on the second.
func installSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sc := make(chan os.Signal, signalChannelSize)
	go func() {
		sig := <-sc
		logging.Infof(ctx, "Caught %v signal; stopping launches", sig)
		cancel()
		sig = <-sc
		fmt.Fprintf(os.Stderr, "\nCaught %v signal; exiting\n", sig)
		os.Exit(1)
	}()
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newExpandCmd(os.Stdout), "")
	subcommands.Register(newLaunchCmd(os.Stdout), "")
	subcommands.Register(newDoctorCmd(os.Stdout), "")
	subcommands.Register(newCheckCmd(os.Stdout), "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")
	logTime := flag.Bool("logtime", true, "include date/time headers in logs")
	flag.Parse()

	if *version {
		fmt.Printf("mpitest version %s\n", Version)
		return 0
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewSinkLogger(level, *logTime, logging.NewWriterSink(os.Stderr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.AttachLogger(ctx, logger)

	installSignalHandler(ctx, cancel)

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
