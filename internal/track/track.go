package track

import "strings"

// Info identifies the track a player reports as current.
type Info struct {
	Title      string
	Artist     string
	Album      string
	DurationMs int64
	ArtworkURL string
	TrackID    string
}

func (t *Info) IsValid() bool {
	if t == nil {
		return false
	}
	return t.Title != "" && t.Artist != ""
}

// IsSameTrack reports whether two infos describe the same track. Player ids win
// when both sides carry one, otherwise title and artist are compared.
func (t *Info) IsSameTrack(other *Info) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.TrackID != "" && other.TrackID != "" {
		return t.TrackID == other.TrackID
	}
	return strings.EqualFold(t.Title, other.Title) && strings.EqualFold(t.Artist, other.Artist)
}

// Key is a stable identity string, used to match async lyric lookups to the
// track they were started for.
func (t *Info) Key() string {
	if t == nil {
		return ""
	}
	if t.TrackID != "" {
		return "id:" + t.TrackID
	}
	return "meta:" + strings.ToLower(t.Artist) + "|" + strings.ToLower(t.Title)
}

func (t *Info) String() string {
	if t == nil {
		return "<none>"
	}
	return t.Artist + " - " + t.Title
}
