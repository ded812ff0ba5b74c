package core

import "time"

// Recorder receives operational events from the service. The metrics package
// provides the Prometheus implementation; the zero Service uses a no-op.
type Recorder interface {
	UploadSucceeded(stats IngestStats, elapsed time.Duration)
	UploadFailed(code string)
	UploadsPruned(n int)
	TokensPurged(n int64)
}

type nopRecorder struct{}

func (nopRecorder) UploadSucceeded(IngestStats, time.Duration) {}
func (nopRecorder) UploadFailed(string)                        {}
func (nopRecorder) UploadsPruned(int)                          {}
func (nopRecorder) TokensPurged(int64)                         {}
