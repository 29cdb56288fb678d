package main

import (
	"os"
)

// BuildVersion is set at link time with -ldflags "-X main.BuildVersion=...".
var BuildVersion string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
