package main

import (
	"context"
	"fmt"
	"os"

	"github.com/raoulx24/zam/internal/cli"
)

func main() {
	if err := cli.BuildCLI().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "zam: %v\n", err)
		os.Exit(1)
	}
}
