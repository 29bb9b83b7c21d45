package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// An interrupted run already wrote whatever it could; exit with
		// the conventional SIGINT code without extra noise.
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "clipsight:", err)
		os.Exit(1)
	}
}
