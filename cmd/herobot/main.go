package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/herobot/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "herobot: %v\n", err)
		os.Exit(1)
	}
}
