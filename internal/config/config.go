// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config resolves how the parallel launcher is invoked.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"

	"mpitest/errors"
	"mpitest/internal/launch"
	"mpitest/shutil"
)

const (
	// FileEnv names the environment variable pointing at a config file.
	FileEnv = "MPITEST_CONFIG"
	// DefaultFile is the config file looked up in the working directory
	// when FileEnv is unset.
	DefaultFile = "mpitest.yaml"
)

// Environment variables overriding config file values.
const (
	launcherEnv         = "MPITEST_LAUNCHER"
	countFlagEnv        = "MPITEST_COUNT_FLAG"
	launcherArgsEnv     = "MPITEST_LAUNCHER_ARGS"
	testArgsEnv         = "MPITEST_TEST_ARGS"
	skipIfNoLauncherEnv = "MPITEST_SKIP_IF_NO_LAUNCHER"
	killGraceEnv        = "MPITEST_KILL_GRACE"
)

// Config holds launcher settings.
type Config struct {
	// Launcher is the launcher executable.
	Launcher string `yaml:"launcher"`
	// CountFlag is the launcher flag taking the process count.
	CountFlag string `yaml:"count_flag"`
	// LauncherArgs are passed to the launcher before CountFlag.
	LauncherArgs []string `yaml:"launcher_args"`
	// TestArgs are passed to every launched test binary.
	TestArgs []string `yaml:"test_args"`
	// Env is added to the launcher's environment.
	Env map[string]string `yaml:"env"`
	// SkipIfNoLauncher skips units instead of failing them when Launcher
	// cannot be found.
	SkipIfNoLauncher bool `yaml:"skip_if_no_launcher"`
	// KillGrace is the time between SIGTERM and SIGKILL when a launch is
	// aborted.
	KillGrace time.Duration `yaml:"kill_grace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Launcher:  "mpiexec",
		CountFlag: "-n",
		KillGrace: launch.DefaultKillGrace,
	}
}

// Load reads the YAML file at path over cfg. Unknown keys are errors.
func (cfg *Config) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config")
	}
	if err := yaml.UnmarshalStrict(b, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg with environment variables read through getenv.
func (cfg *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(launcherEnv); v != "" {
		cfg.Launcher = v
	}
	if v := getenv(countFlagEnv); v != "" {
		cfg.CountFlag = v
	}
	for _, e := range []struct {
		name string
		dst  *[]string
	}{
		{launcherArgsEnv, &cfg.LauncherArgs},
		{testArgsEnv, &cfg.TestArgs},
	} {
		v := getenv(e.name)
		if v == "" {
			continue
		}
		args, err := shutil.Split(v)
		if err != nil {
			return errors.Wrapf(err, "bad %s", e.name)
		}
		*e.dst = args
	}
	if v := getenv(skipIfNoLauncherEnv); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "bad %s", skipIfNoLauncherEnv)
		}
		cfg.SkipIfNoLauncher = b
	}
	if v := getenv(killGraceEnv); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "bad %s", killGraceEnv)
		}
		cfg.KillGrace = d
	}
	return nil
}

// Validate checks that cfg is usable.
func (cfg *Config) Validate() error {
	if cfg.Launcher == "" {
		return errors.New("launcher is empty")
	}
	if cfg.CountFlag == "" {
		return errors.New("count_flag is empty")
	}
	if cfg.KillGrace < 0 {
		return errors.Errorf("kill_grace %v is negative", cfg.KillGrace)
	}
	return nil
}

// EnvList returns Env as sorted "key=value" strings.
func (cfg *Config) EnvList() []string {
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+cfg.Env[k])
	}
	return list
}

// NewLauncher returns a launcher built from cfg. Output destinations and the
// test binary are left for the caller to fill in.
func (cfg *Config) NewLauncher() *launch.Launcher {
	return &launch.Launcher{
		Path:      cfg.Launcher,
		CountFlag: cfg.CountFlag,
		Args:      append([]string(nil), cfg.LauncherArgs...),
		TestArgs:  append([]string(nil), cfg.TestArgs...),
		Env:       cfg.EnvList(),
		KillGrace: cfg.KillGrace,
	}
}

// FromEnvironment returns the effective configuration for the current
// process: defaults, then the file named by MPITEST_CONFIG (or mpitest.yaml
// if present), then environment overrides.
func FromEnvironment() (*Config, error) {
	cfg := Default()

	path := os.Getenv(FileEnv)
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := cfg.Load(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid mpitest configuration")
	}
	return cfg, nil
}
