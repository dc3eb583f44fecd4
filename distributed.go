package main

import (
	"fmt"
	"sync"

	"MandelbrotExplorer/coordinator"
	"MandelbrotExplorer/misc"
	"MandelbrotExplorer/worker"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/spf13/cobra"
)

func coordinatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Hand out the frames of a run to workers and save the results",
		Args:  cobra.ExactArgs(0),
		RunE:  runCoordinator,
	}

	cmd.Flags().String("settings", "", "json file with coordinator settings")
	_ = cmd.MarkFlagRequired("settings")
	return cmd
}

func runCoordinator(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	settings := coordinator.NewSettings(mustString(cmd.Flags().GetString("settings")))
	c, err := coordinator.NewCoordinator(settings)
	if err != nil {
		return err
	}
	c.Wait()
	return nil
}

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Render tasks for a coordinator until the run is done",
		Args:  cobra.ExactArgs(0),
		RunE:  runWorker,
	}

	flags := cmd.Flags()
	flags.String("settings", "", "json file with worker settings")
	flags.String("coordinator", "", "coordinator address, overrides the settings file")
	flags.Int("count", 1, "number of workers to start")
	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	logger := bslogger.NewLogger("Workers", bslogger.Normal, nil)
	flags := cmd.Flags()

	var settings worker.Settings
	if path := mustString(flags.GetString("settings")); path != "" {
		settings = worker.NewSettings(path)
	}
	if flags.Changed("coordinator") {
		settings.CoordinatorAddress, _ = flags.GetString("coordinator")
	}
	count, _ := flags.GetInt("count")
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}

	wg := sync.WaitGroup{}
	for i := 0; i < count; i++ {
		// Each worker needs its own port
		workerSettings := settings
		workerSettings.ListenAddress = ""
		if count == 1 {
			workerSettings.ListenAddress = settings.ListenAddress
		}

		w, err := worker.NewWorker(workerSettings)
		if err != nil {
			misc.CheckError(err, logger, misc.Error)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Wait()
		}()
	}
	wg.Wait()
	return nil
}
