package main

import (
	"fmt"
	"os"

	"patrimonio/internal/report"
)

// printMarkdown renders md for the terminal, falling back to the raw
// markdown when it cannot be styled.
func printMarkdown(md, style string, width int) {
	out, err := report.Terminal(md, style, width)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
