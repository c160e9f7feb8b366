// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// mtpctl - Microwave Temperature Profiler probe controller
//
// A CLI tool for running the MTP scan cycle, recovering the probe link and
// decoding telemetry into engineering units.

package main

import (
	"os"

	"github.com/Thermoquad/mtpctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
