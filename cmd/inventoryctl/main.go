package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"marketbot/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, cli.ErrRejected) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
