// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the matrixbot configuration file.
//
// The file is YAML and is named by the --config flag or the
// MATRIXBOT_CONFIG environment variable. Unknown keys are rejected so
// that a misspelled option fails at startup instead of being ignored.
// Values not present in the file keep the defaults from [Default], and
// command-line flags are applied on top by the binary.
//
// Path values may reference ${VAR} or ${VAR:-default}; they are expanded
// from the environment after loading.
package config
