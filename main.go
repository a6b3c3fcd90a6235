package main

import (
	"os"

	"github.com/avelichko/manager-pulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
