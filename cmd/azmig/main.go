// Package main provides the entry point for the azmig CLI.
package main

import (
	"os"

	"github.com/mayoit/azmig-tool-assistant-sub000/cmd/azmig/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
