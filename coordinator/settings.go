package coordinator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/misc"
	"MandelbrotExplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

type Settings struct {
	logger bslogger.Logger

	GenerateMovie  bool
	ImageFormat    string
	Mandelbrot     mandelbrot.Settings
	RunName        string
	SavePath       string
	ServerAddress  string
	TaskGeneration string
	Transitions    []Transition
}

func NewSettings(settingsFile string) Settings {
	s := Settings{
		logger:     bslogger.NewLogger("CoordinatorSettings", bslogger.Normal, nil),
		Mandelbrot: mandelbrot.BaseSettings(),
	}
	fileBytes, err := misc.ReadFile(settingsFile)
	misc.CheckError(err, s.logger, misc.Fatal)
	misc.CheckError(json.Unmarshal(fileBytes, &s), s.logger, misc.Fatal)
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	s.logger.Debug(s.String())
	return s
}

func (s *Settings) String() string {
	output := "\nCoordinator settings\n"
	output += fmt.Sprintf("My Address: %s\n", s.ServerAddress)
	output += fmt.Sprintf("Run: %s\n", s.RunName)
	output += fmt.Sprintf("Save Path: %s\n", s.SavePath)
	output += fmt.Sprintf("Image Format: %s\n", s.ImageFormat)
	output += fmt.Sprintf("Task Generation: %s\n", s.TaskGeneration)
	output += fmt.Sprintf("Transitions: %d\n", len(s.Transitions))
	output += s.Mandelbrot.String()
	return output
}

func (s *Settings) Verify() error {
	s.logger = bslogger.NewLogger("CoordinatorSettings", bslogger.Normal, nil)

	misc.CheckError(s.Mandelbrot.Verify(), s.logger, misc.Fatal)
	switch strings.ToLower(s.ImageFormat) {
	case "jpg", FormatJPEG:
		s.ImageFormat = FormatJPEG
	case FormatPNG:
		s.ImageFormat = FormatPNG
	default:
		if s.ImageFormat != "" {
			s.logger.Warningf("Unknown image format %q, using %q", s.ImageFormat, FormatPNG)
		}
		s.ImageFormat = FormatPNG
	}
	if s.RunName == "" {
		s.RunName = "run_" + time.Now().Format("2006_01_02-03_04_05")
	}
	if s.SavePath == "" {
		s.SavePath, _ = os.Getwd()
	}
	if s.ServerAddress == "" {
		s.ServerAddress = fmt.Sprintf("%s:%s", misc.GetLocalAddressOr("127.0.0.1"), "51000")
	}
	if _, err := task.ParseGeneration(s.TaskGeneration); err != nil {
		if s.TaskGeneration != "" {
			s.logger.Warningf("%s, using %s", err, task.Row)
		}
		s.TaskGeneration = task.Row.String()
	}
	if len(s.Transitions) == 0 {
		// A single frame of the configured view
		s.Transitions = []Transition{
			{
				EndX:       s.Mandelbrot.CenterX,
				EndY:       s.Mandelbrot.CenterY,
				FrameCount: 1,
				ScaleEnd:   s.Mandelbrot.Scale,
				ScaleStart: s.Mandelbrot.Scale,
				StartX:     s.Mandelbrot.CenterX,
				StartY:     s.Mandelbrot.CenterY,
			},
		}
	}

	// Verify each of the transitions
	for i := 0; i < len(s.Transitions); i++ {
		misc.CheckError(s.Transitions[i].Verify(), s.logger, misc.Warning)
	}

	// If generate movie is set to true, verify ffmpeg is setup
	if s.GenerateMovie {
		cmd := exec.Command("ffmpeg", "-version")
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err != nil || !bytes.Contains(stdout.Bytes(), []byte(`ffmpeg version`)) {
			s.GenerateMovie = false
			s.logger.Info("Ffmpeg is not installed. Disabling GenerateMovie.")
		}
	}

	return nil
}

// Generation is TaskGeneration parsed. Verify guarantees it parses.
func (s *Settings) Generation() task.Generation {
	g, _ := task.ParseGeneration(s.TaskGeneration)
	return g
}

// FrameCount is the number of frames across all transitions.
func (s *Settings) FrameCount() uint {
	var count uint
	for _, t := range s.Transitions {
		count += t.FrameCount
	}
	return count
}

func (s *Settings) extension() string {
	if s.ImageFormat == FormatJPEG {
		return "jpg"
	}
	return FormatPNG
}
