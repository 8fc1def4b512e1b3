// Package main is the entry point for the chatbackup CLI.
package main

import (
	"os"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands"
)

func main() {
	os.Exit(commands.Main(os.Stderr))
}
