package worker

import (
	"encoding/json"
	"fmt"

	"MandelbrotExplorer/misc"

	"github.com/BrugadaSyndrome/bslogger"
)

type Settings struct {
	logger bslogger.Logger

	CoordinatorAddress string
	ListenAddress      string
	Threads            int
}

func NewSettings(settingsFile string) Settings {
	s := Settings{
		logger: bslogger.NewLogger("WorkerSettings", bslogger.Normal, nil),
	}
	fileBytes, err := misc.ReadFile(settingsFile)
	misc.CheckError(err, s.logger, misc.Fatal)
	misc.CheckError(json.Unmarshal(fileBytes, &s), s.logger, misc.Fatal)
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	s.logger.Debug(s.String())
	return s
}

func (s *Settings) String() string {
	output := "\nWorker settings\n"
	output += fmt.Sprintf("Coordinator Address: %s\n", s.CoordinatorAddress)
	output += fmt.Sprintf("Listen Address: %s\n", s.ListenAddress)
	output += fmt.Sprintf("Threads: %d\n", s.Threads)
	return output
}

func (s *Settings) Verify() error {
	host := misc.GetLocalAddressOr("127.0.0.1")
	if s.CoordinatorAddress == "" {
		s.CoordinatorAddress = fmt.Sprintf("%s:%s", host, "51000")
	}
	if s.ListenAddress == "" {
		// Find a free port to use for this worker
		port, err := misc.GetFreePort()
		if err != nil {
			return err
		}
		s.ListenAddress = fmt.Sprintf("%s:%d", host, port)
	}
	if s.Threads <= 0 {
		s.Threads = 1
	}
	return nil
}
