package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath returns <logsDir>/<name>.<yyyymmdd_hhmmss>.log for a run
// started at start.
func LogFilePath(logsDir, name string, start time.Time) string {
	file := fmt.Sprintf("%s.%s.log", name, start.Format("20060102_150405"))
	return filepath.Join(logsDir, file)
}
