package main

import "github.com/kvz-tools/dothttp/internal/cli"

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Execute(version, buildTime)
}
