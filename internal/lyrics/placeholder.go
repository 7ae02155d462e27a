package lyrics

import (
	"context"
	"strings"
)

const SourcePlaceholder = "placeholder"

var placeholderBody = []struct {
	at   float64
	text string
}{
	{7, "Lyrics are syncing with the beat"},
	{11, "Enjoy the music and follow along"},
	{15, "Each word appears as the song plays"},
	{19, "Music brings us all together"},
}

// Placeholder builds generated lyrics for a song nobody has real lyrics for.
func Placeholder(title string, artist string) *Track {
	lines := make([]Line, 0, len(placeholderBody)+2)
	lines = append(lines,
		Line{StartTime: 0, Words: strings.Fields(title)},
		Line{StartTime: 3, Words: append([]string{"By"}, strings.Fields(artist)...)},
	)
	for _, body := range placeholderBody {
		lines = append(lines, Line{StartTime: body.at, Words: strings.Fields(body.text)})
	}
	return NewTrack(SourcePlaceholder, lines)
}

// PlaceholderSource always answers with generated lyrics. Put it last in a chain.
type PlaceholderSource struct{}

func (PlaceholderSource) Name() string { return SourcePlaceholder }

func (PlaceholderSource) Fetch(ctx context.Context, q Query) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !q.Valid() {
		return nil, ErrNotFound
	}
	return Placeholder(q.Title, q.Artist), nil
}
