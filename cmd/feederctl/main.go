package main

import (
	"github.com/robotalks/feeder.go/pkg/cli/sh"
	env "github.com/robotalks/feeder.go/pkg/env/connector"

	_ "github.com/robotalks/feeder.go/pkg/cli/cmds/feeder"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
