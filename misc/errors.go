package misc

import "github.com/BrugadaSyndrome/bslogger"

// Severity selects the logger method CheckError reports on.
type Severity int

const (
	Fatal Severity = iota
	Error
	Warning
	Info
	Debug
)

var severityNames = [...]string{"Fatal", "Error", "Warning", "Info", "Debug"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "Unknown"
	}
	return severityNames[s]
}

// CheckError reports a non-nil err on logger and returns true when there was one.
// Unknown severities are treated as Fatal, which exits the process.
func CheckError(err error, logger bslogger.Logger, severity Severity) bool {
	if err == nil {
		return false
	}
	report := map[Severity]func(string){
		Error:   logger.Error,
		Warning: logger.Warning,
		Info:    logger.Info,
		Debug:   logger.Debug,
	}[severity]
	if report == nil {
		report = logger.Fatal
	}
	report(err.Error())
	return true
}
