// fasstcat drives the FASST-CAT catalysis test-bed's gas delivery
// system: flow setpoints, selector-valve routing, pulse sequencing
// and the pressure safety watchdog.
//
// Usage:
//
//	fasstcat --config config.json status
//	fasstcat set-flow Ar_A 15
//	fasstcat mode continuous-A
//	fasstcat pulse A 10 2s
//	fasstcat serve --listen :9090
//
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import "fasstcat-go/cmd/fasstcat/cmd"

func main() {
	cmd.Execute()
}
