package engine

import "time"

// Recorder receives driver events for metrics. Implemented by
// metrics.Collector.
type Recorder interface {
	TickObserved(d time.Duration)
	EpisodeStarted()
	EpisodeFinished(outcome string)
	CommandsIssued(n int)
	CommandDropped(kind string)
	Snapshot(op string)
}

type nopRecorder struct{}

func (nopRecorder) TickObserved(time.Duration) {}
func (nopRecorder) EpisodeStarted()            {}
func (nopRecorder) EpisodeFinished(string)     {}
func (nopRecorder) CommandsIssued(int)         {}
func (nopRecorder) CommandDropped(string)      {}
func (nopRecorder) Snapshot(string)            {}
