package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func mainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mandelbrot",
		Short: "Render and explore the Mandelbrot set",
		Args:  cobra.ExactArgs(0),
	}

	cmd.AddCommand(renderCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(coordinatorCmd())
	cmd.AddCommand(workerCmd())
	return cmd
}

func main() {
	ctx := context.Background()

	err := mainCmd().ExecuteContext(ctx)
	if err != nil {
		// At this point the error has already been printed; no need to print again.
		os.Exit(1)
	}
}
