// The main package for the upcd executable.
package main

import (
	"github.com/mlefevre/upc-decisions/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
