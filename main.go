package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	prompt := NewPrompter(os.Stdin, os.Stdout, isTerminal(os.Stdin))
	app := NewApp(os.Stdout, os.Stderr, prompt)
	app.liveOutput = isTerminal(os.Stdout)
	rootCmd := SetupCommands(app)

	err := rootCmd.ExecuteContext(ctx)
	// Close waits for background pushes, so it runs even when the command failed.
	if cerr := app.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cerr)
	}
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
