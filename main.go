// Package main is the entry point for the occingest CLI application.
// It submits files to OpenText Capture Center as batches.
package main

import (
	"occingest/cli/cmd"
)

func main() {
	cmd.Execute()
}
