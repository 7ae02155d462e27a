package lyrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LRC is a parsed .lrc document.
type LRC struct {
	Title    string
	Artist   string
	Album    string
	OffsetMs int64
	Lines    []Line
}

// ParseLRC parses synced lyrics in LRC format. Lines with several time tags are
// repeated once per tag, empty text becomes a rest line, and the [offset:] tag
// is applied to every start time. The result is sorted by start time.
func ParseLRC(raw string) *LRC {
	doc := &LRC{}
	if raw == "" {
		return doc
	}

	rawLines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	lines := make([]Line, 0, len(rawLines))

	for _, rawLine := range rawLines {
		trimmed := strings.TrimSpace(rawLine)
		if trimmed == "" {
			continue
		}

		if doc.parseTag(trimmed) {
			continue
		}

		stamps, text := splitLrcLine(trimmed)
		if len(stamps) == 0 {
			continue
		}

		words := strings.Fields(text)
		for _, stamp := range stamps {
			seconds, err := parseLrcTimeToSeconds(stamp)
			if err != nil {
				continue
			}
			lines = append(lines, Line{StartTime: seconds, Words: words})
		}
	}

	if doc.OffsetMs != 0 {
		// positive offsets make lyrics appear sooner
		shift := float64(doc.OffsetMs) / 1000
		for i := range lines {
			lines[i].StartTime -= shift
			if lines[i].StartTime < 0 {
				lines[i].StartTime = 0
			}
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].StartTime < lines[j].StartTime
	})

	doc.Lines = lines
	return doc
}

func (d *LRC) parseTag(line string) bool {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return false
	}

	body := line[1 : len(line)-1]
	key, value, found := strings.Cut(body, ":")
	if !found {
		return false
	}

	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "ti":
		d.Title = value
	case "ar":
		d.Artist = value
	case "al":
		d.Album = value
	case "offset":
		offset, err := strconv.ParseInt(strings.TrimPrefix(value, "+"), 10, 64)
		if err == nil {
			d.OffsetMs = offset
		}
	case "by", "re", "ve", "length", "au", "#":
	default:
		return false
	}
	return true
}

func splitLrcLine(line string) ([]string, string) {
	var stamps []string
	rest := line

	for strings.HasPrefix(rest, "[") {
		endIndex := strings.Index(rest, "]")
		if endIndex <= 1 {
			break
		}
		stamps = append(stamps, rest[1:endIndex])
		rest = rest[endIndex+1:]
	}

	return stamps, strings.TrimSpace(rest)
}

func parseLrcTimeToSeconds(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("empty time value")
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", raw)
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse float %q: %w", part, err)
		}
		values[i] = value
	}

	var total float64
	if len(values) == 3 {
		total = values[0]*3600 + values[1]*60 + values[2]
	} else {
		total = values[0]*60 + values[1]
	}

	if total < 0 {
		return 0, errors.New("negative time not allowed")
	}

	return total, nil
}
