package player

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/track"
)

const (
	mprisPath          = "/org/mpris/MediaPlayer2"
	mprisRootIface     = "org.mpris.MediaPlayer2"
	mprisPlayerIface   = "org.mpris.MediaPlayer2.Player"
	mprisServicePrefix = "org.mpris.MediaPlayer2."
	propertiesIface    = "org.freedesktop.DBus.Properties"
	serviceUnknown     = "org.freedesktop.DBus.Error.ServiceUnknown"

	DefaultMPRISService = "org.mpris.MediaPlayer2.spotify"
)

// MPRIS polls a media player over the session bus. Seeked and
// PropertiesChanged signals are turned into hints for an early poll.
type MPRIS struct {
	bus     *dbus.Conn
	service string
	logger  *zap.Logger
	now     func() time.Time

	signalChan chan *dbus.Signal
	stopChan   chan struct{}
	stopOnce   sync.Once
	hints      chan struct{}
}

func NewMPRIS(bus *dbus.Conn, service string, logger *zap.Logger) (*MPRIS, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service == "" {
		return nil, errors.New("empty mpris service name")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MPRIS{
		bus:     bus,
		service: service,
		logger:  logger,
		now:     time.Now,
		hints:   make(chan struct{}, 1),
	}, nil
}

func (m *MPRIS) Name() string {
	return "mpris:" + strings.TrimPrefix(m.service, mprisServicePrefix)
}

// Start subscribes to player signals. Polling works without it.
func (m *MPRIS) Start() error {
	m.signalChan = make(chan *dbus.Signal, 10)
	m.stopChan = make(chan struct{})

	m.bus.Signal(m.signalChan)

	matchPropertiesChanged := fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='PropertiesChanged',path='%s'",
		m.service, propertiesIface, mprisPath,
	)
	matchSeeked := fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
		m.service, mprisPlayerIface, mprisPath,
	)

	for _, rule := range []string{matchPropertiesChanged, matchSeeked} {
		if err := m.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
			return fmt.Errorf("failed to add match %q: %w", rule, err)
		}
	}

	go m.signalLoop()

	return nil
}

func (m *MPRIS) Stop() {
	m.stopOnce.Do(func() {
		if m.stopChan != nil {
			m.bus.RemoveSignal(m.signalChan)
			close(m.stopChan)
		}
	})
}

func (m *MPRIS) Hints() <-chan struct{} {
	return m.hints
}

func (m *MPRIS) Poll(ctx context.Context) (*Sample, error) {
	status, err := m.getString(ctx, "PlaybackStatus")
	if err != nil {
		return nil, err
	}
	if status == "Stopped" {
		return nil, ErrNothingPlaying
	}

	metadata, err := m.getProperty(ctx, "Metadata")
	if err != nil {
		return nil, err
	}
	fields, ok := metadata.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", metadata.Value())
	}

	info := infoFromMetadata(fields)
	if !info.IsValid() {
		return nil, fmt.Errorf("missing title or artist in metadata (title=%q, artist=%q): %w",
			info.Title, info.Artist, ErrNothingPlaying)
	}

	position, err := m.getProperty(ctx, "Position")
	if err != nil {
		return nil, err
	}

	return &Sample{
		Track:     info,
		ElapsedMs: microsToMillis(position.Value()),
		Playing:   status == "Playing",
		SampledAt: m.now(),
	}, nil
}

func (m *MPRIS) getProperty(ctx context.Context, name string) (dbus.Variant, error) {
	var value dbus.Variant
	obj := m.bus.Object(m.service, mprisPath)
	err := obj.CallWithContext(ctx, propertiesIface+".Get", 0, mprisPlayerIface, name).Store(&value)
	if err != nil {
		if isServiceUnknown(err) {
			return value, fmt.Errorf("%s is not running: %w", m.service, ErrNothingPlaying)
		}
		return value, fmt.Errorf("failed to get %s property: %w", name, err)
	}
	return value, nil
}

func isServiceUnknown(err error) bool {
	var value dbus.Error
	if errors.As(err, &value) {
		return value.Name == serviceUnknown
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name == serviceUnknown
	}
	return false
}

func (m *MPRIS) getString(ctx context.Context, name string) (string, error) {
	value, err := m.getProperty(ctx, name)
	if err != nil {
		return "", err
	}
	text, ok := value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s type %T", name, value.Value())
	}
	return text, nil
}

func (m *MPRIS) signalLoop() {
	for {
		select {
		case sig, ok := <-m.signalChan:
			if !ok {
				return
			}
			if isPlayerSignal(sig) {
				m.logger.Debug("Player signal", zap.String("name", sig.Name))
				notify(m.hints)
			}
		case <-m.stopChan:
			return
		}
	}
}

func isPlayerSignal(sig *dbus.Signal) bool {
	if sig == nil {
		return false
	}

	switch sig.Name {
	case mprisPlayerIface + ".Seeked":
		return true
	case propertiesIface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return false
		}
		iface, ok := sig.Body[0].(string)
		return ok && iface == mprisPlayerIface
	}
	return false
}

func infoFromMetadata(metadata map[string]dbus.Variant) *track.Info {
	return &track.Info{
		Title:      extractString(metadata, "xesam:title"),
		Artist:     extractArtist(metadata, "xesam:artist"),
		Album:      extractString(metadata, "xesam:album"),
		ArtworkURL: extractString(metadata, "mpris:artUrl"),
		TrackID:    extractTrackID(metadata, "mpris:trackid"),
		DurationMs: microsToMillis(variantValue(metadata, "mpris:length")),
	}
}

func variantValue(metadata map[string]dbus.Variant, key string) interface{} {
	if metadata == nil {
		return nil
	}
	variant, exists := metadata[key]
	if !exists {
		return nil
	}
	return variant.Value()
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	text, _ := variantValue(metadata, key).(string)
	return text
}

// some players publish the track id as an object path rather than a string
func extractTrackID(metadata map[string]dbus.Variant, key string) string {
	switch typed := variantValue(metadata, key).(type) {
	case dbus.ObjectPath:
		return string(typed)
	case string:
		return typed
	default:
		return ""
	}
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	switch typed := variantValue(metadata, key).(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

// mpris reports times in microseconds
func microsToMillis(raw interface{}) int64 {
	switch typed := raw.(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return typed / 1000
	case uint64:
		return int64(typed / 1000)
	case int32:
		if typed <= 0 {
			return 0
		}
		return int64(typed) / 1000
	case uint32:
		return int64(typed) / 1000
	default:
		return 0
	}
}

// Player is an MPRIS service found on the bus.
type Player struct {
	Service  string
	Identity string
}

// ListPlayers returns every MPRIS service on the bus, sorted by name.
func ListPlayers(bus *dbus.Conn) ([]Player, error) {
	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	var players []Player
	for _, name := range names {
		if !strings.HasPrefix(name, mprisServicePrefix) {
			continue
		}
		players = append(players, Player{Service: name, Identity: identity(bus, name)})
	}

	sort.Slice(players, func(i, j int) bool { return players[i].Service < players[j].Service })
	return players, nil
}

func identity(bus *dbus.Conn, service string) string {
	variant, err := bus.Object(service, mprisPath).GetProperty(mprisRootIface + ".Identity")
	if err != nil {
		return ""
	}
	name, _ := variant.Value().(string)
	return name
}
