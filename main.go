// The main package for the extractor executable.
package main

import (
	"github.com/clipvault/extractor/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
