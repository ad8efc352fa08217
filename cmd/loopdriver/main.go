// Command loopdriver delegates a goal and its options into the
// orchestration engine.
package main

import (
	"fmt"
	"os"

	"github.com/kieran-voss/loopdriver/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
