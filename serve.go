package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"MandelbrotExplorer/explorer"
	"MandelbrotExplorer/misc"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive explorer over http",
		Args:  cobra.ExactArgs(0),
		RunE:  runServe,
	}

	flags := cmd.Flags()
	flags.String("address", "localhost:8080", "address to listen on")
	flags.String("settings", "", "json file with mandelbrot settings for new sessions")
	flags.StringSlice("origin", nil, "extra origin patterns allowed to open the websocket")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	logger := bslogger.NewLogger("Serve", bslogger.Normal, nil)
	flags := cmd.Flags()

	settings, err := loadMandelbrotSettings(mustString(flags.GetString("settings")))
	if err != nil {
		return err
	}
	misc.CheckError(settings.Verify(), logger, misc.Warning)
	origins, _ := flags.GetStringSlice("origin")

	server := explorer.NewServer(settings, mustString(flags.GetString("address")), origins)
	if err = server.Run(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
