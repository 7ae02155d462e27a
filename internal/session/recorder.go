package session

// Recorder receives session events for metrics.
type Recorder interface {
	SampleReceived(player string)
	PollFailed(player string)
	PollSkipped()
	TrackChanged()
	LyricsResolved(source string)
	LyricsMissing()
	LineAdvanced()
	RegressionSuppressed()
}

// OffsetStore persists the sync offset per song.
type OffsetStore interface {
	Offset(artist, title string) (int64, bool)
	SaveOffset(artist, title string, offsetMs int64) error
}

type nopRecorder struct{}

func (nopRecorder) SampleReceived(string) {}
func (nopRecorder) PollFailed(string)     {}
func (nopRecorder) PollSkipped()          {}
func (nopRecorder) TrackChanged()         {}
func (nopRecorder) LyricsResolved(string) {}
func (nopRecorder) LyricsMissing()        {}
func (nopRecorder) LineAdvanced()         {}
func (nopRecorder) RegressionSuppressed() {}
