package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	// stdout belongs to the MCP stdio transport, so the banner goes to stderr
	fmt.Fprintln(os.Stderr, myFigure.String())
}
