package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"refinery/internal/services"
)

func main() {
	// A .env beside the binary is a convenience for development; the real
	// environment always wins.
	_ = godotenv.Load()

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		if services.IsStorage(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
