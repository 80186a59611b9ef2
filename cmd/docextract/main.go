package main

import (
	"fmt"
	"os"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if _, werr := fmt.Fprintf(os.Stderr, "Error: %v\n", err); werr != nil {
			fmt.Printf("Error: %v\n", err)
		}
		if common.IsInvalidInput(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
