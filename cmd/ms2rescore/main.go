// ms2rescore - Sensitive PSM rescoring with predicted features
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/ms2rescore/cmd/ms2rescore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
