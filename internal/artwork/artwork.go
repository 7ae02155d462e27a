// Package artwork turns album art into a small color palette for the viewer.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/EdlinOrg/prominentcolor"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 5 * time.Second

	paletteCacheSize = 64
	clusters         = 5
	maxSampleSide    = 160
)

var ErrNoPalette = errors.New("artwork has too few distinct colors")

// Colors are the three colors picked from one piece of artwork, as hex.
type Colors struct {
	Primary   string
	Secondary string
	Accent    string
}

// Loader fetches artwork and remembers the palette per URL.
type Loader struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
	cache   *lru.Cache[string, Colors]
}

func NewLoader(client *http.Client, logger *zap.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[string, Colors](paletteCacheSize)
	return &Loader{
		client:  client,
		timeout: DefaultTimeout,
		logger:  logger,
		cache:   cache,
	}
}

// Load returns the palette for artworkURL, fetching it on first use.
func (l *Loader) Load(ctx context.Context, artworkURL string) (Colors, error) {
	if cached, ok := l.cache.Get(artworkURL); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	img, err := Fetch(ctx, l.client, artworkURL)
	if err != nil {
		l.logger.Debug("Artwork unavailable", zap.String("url", artworkURL), zap.Error(err))
		return Colors{}, err
	}

	colors, err := Extract(img)
	if err != nil {
		return Colors{}, err
	}

	l.cache.Add(artworkURL, colors)

	return colors, nil
}

// Fetch decodes artwork from a file:// URL or over http.
func Fetch(ctx context.Context, client *http.Client, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, errors.New("empty artwork url")
	}

	if strings.HasPrefix(artworkURL, "file://") {
		path := strings.TrimPrefix(artworkURL, "file://")
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open artwork file: %w", err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode artwork image: %w", err)
		}
		return img, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}

	return img, nil
}

type scoredColor struct {
	r, g, b    uint32
	sat        float64
	brightness float64
	score      float64
}

func (c scoredColor) same(o scoredColor) bool {
	return c.r == o.r && c.g == o.g && c.b == o.b
}

// Extract clusters the artwork and picks a saturated, mid-bright primary
// plus two further distinct colors. The brightest pick becomes Primary.
func Extract(img image.Image) (Colors, error) {
	if img == nil {
		return Colors{}, errors.New("no artwork image")
	}

	b := img.Bounds()
	if b.Dx() > maxSampleSide || b.Dy() > maxSampleSide {
		img = resize.Thumbnail(maxSampleSide, maxSampleSide, img, resize.Bilinear)
	}

	items, err := prominentcolor.KmeansWithAll(clusters, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil {
		return Colors{}, fmt.Errorf("failed to cluster artwork colors: %w", err)
	}
	if len(items) < 3 {
		return Colors{}, ErrNoPalette
	}

	scored := make([]scoredColor, len(items))
	for i, item := range items {
		r := float64(item.Color.R) / 255.0
		g := float64(item.Color.G) / 255.0
		bl := float64(item.Color.B) / 255.0

		hi := math.Max(math.Max(r, g), bl)
		lo := math.Min(math.Min(r, g), bl)

		sat := 0.0
		if hi > 0 {
			sat = (hi - lo) / hi
		}

		scored[i] = scoredColor{
			r:          item.Color.R,
			g:          item.Color.G,
			b:          item.Color.B,
			sat:        sat,
			brightness: hi,
			score:      sat * (1.0 - math.Abs(hi-0.6)),
		}
	}

	primary := scored[0]
	best := -1.0
	for _, c := range scored {
		if c.score > best && c.brightness > 0.3 && c.sat > 0.2 {
			best = c.score
			primary = c
		}
	}

	secondary := pick(scored, 0.15, 0.3, primary)
	accent := pick(scored, 0.1, 0.25, primary, secondary)

	picks := []scoredColor{primary, secondary, accent}
	for i := 0; i < len(picks); i++ {
		for j := i + 1; j < len(picks); j++ {
			if picks[i].brightness < picks[j].brightness {
				picks[i], picks[j] = picks[j], picks[i]
			}
		}
	}

	return Colors{
		Primary:   boostColor(picks[0]),
		Secondary: boostColor(picks[2]),
		Accent:    boostColor(picks[1]),
	}, nil
}

// pick returns the first color above the thresholds that differs from all
// of exclude, or the last candidate when none qualifies.
func pick(scored []scoredColor, minSat float64, minBrightness float64, exclude ...scoredColor) scoredColor {
	fallback := scored[len(scored)-1]
	for _, c := range scored {
		taken := false
		for _, e := range exclude {
			if c.same(e) {
				taken = true
				break
			}
		}
		if taken {
			continue
		}
		fallback = c
		if c.sat > minSat && c.brightness > minBrightness {
			return c
		}
	}
	return fallback
}

// boostColor lifts very dark colors and mutes very bright ones so text
// stays readable on a dark terminal.
func boostColor(c scoredColor) string {
	r, g, b := c.r, c.g, c.b

	if c.brightness < 0.4 {
		factor := 2.5
		if c.brightness > 0 {
			factor = math.Min(2.5, 0.4/c.brightness)
		}
		r = uint32(math.Min(255, float64(r)*factor))
		g = uint32(math.Min(255, float64(g)*factor))
		b = uint32(math.Min(255, float64(b)*factor))
	}

	if c.brightness > 0.85 {
		avg := float64(r+g+b) / 3
		r = uint32(avg + (float64(r)-avg)*0.7)
		g = uint32(avg + (float64(g)-avg)*0.7)
		b = uint32(avg + (float64(b)-avg)*0.7)
	}

	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}
