// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Matrixbot keeps one Matrix session alive and lets local processes act
// through it over a Unix control socket.
//
// On start it loads the login file (or performs an interactive login
// with --login), validates the access token, syncs once, and then runs
// three things side by side until SIGINT or SIGTERM:
//
//   - the /sync loop, which keeps the set of joined rooms current
//   - the control server, when a socket is configured
//   - the Prometheus /metrics endpoint, when a listen address is set
//
// Configuration comes from a YAML file (--config or MATRIXBOT_CONFIG),
// with flags overriding individual values. A .env file in the working
// directory, if present, is loaded into the environment first so that
// ${VAR} references in the configuration can use it.
package main
