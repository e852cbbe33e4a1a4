// The main package for the rrimport executable.
package main

import (
	"github.com/ttstats/rrimport/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
