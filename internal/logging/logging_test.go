package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 10, 18, 9, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{"relative", "rigLogs", filepath.Join("rigLogs", "mocaprig.20261018_090405.log")},
		{"dot relative", "./rigLogs", filepath.Join(".", "rigLogs", "mocaprig.20261018_090405.log")},
		{"absolute", filepath.Join("/var", "log", "rig"), filepath.Join("/var", "log", "rig", "mocaprig.20261018_090405.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "mocaprig", start))
		})
	}
}
