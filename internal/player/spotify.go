package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"karolbroda.com/lyrisync/internal/track"
)

// TokenFilePermission is the permission for stored token files.
const TokenFilePermission = 0o600

// SpotifyConfig points the Spotify poller at an app registration and a
// previously stored OAuth token.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
}

// TokenData is the on-disk token format.
type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

// Spotify polls the Web API player endpoint. It never runs a login flow;
// the token file must already exist. Refreshed tokens are written back.
type Spotify struct {
	client    *spotify.Client
	tokenPath string
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.Mutex
	accessToken string
}

func NewSpotify(ctx context.Context, cfg SpotifyConfig, logger *zap.Logger) (*Spotify, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	token, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load spotify token: %w", err)
	}

	auth := spotifyauth.New(
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
		),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	return &Spotify{
		client:      spotify.New(auth.Client(ctx, token)),
		tokenPath:   cfg.TokenPath,
		logger:      logger,
		now:         time.Now,
		accessToken: token.AccessToken,
	}, nil
}

func (s *Spotify) Name() string { return BackendSpotify }

func (s *Spotify) Poll(ctx context.Context) (*Sample, error) {
	state, err := s.client.PlayerState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}

	s.persistRefreshedToken()

	return sampleFromPlayerState(state, s.now())
}

func (s *Spotify) persistRefreshedToken() {
	token, err := s.client.Token()
	if err != nil || token == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken == s.accessToken {
		return
	}
	if err := SaveToken(s.tokenPath, token); err != nil {
		s.logger.Warn("Failed to save refreshed spotify token", zap.Error(err))
		return
	}
	s.accessToken = token.AccessToken
	s.logger.Debug("Saved refreshed spotify token", zap.Time("expiry", token.Expiry))
}

func sampleFromPlayerState(state *spotify.PlayerState, sampledAt time.Time) (*Sample, error) {
	if state == nil || state.Item == nil {
		return nil, ErrNothingPlaying
	}

	item := state.Item
	info := &track.Info{
		Title:      item.Name,
		Album:      item.Album.Name,
		DurationMs: int64(item.Duration),
		TrackID:    string(item.ID),
	}
	if len(item.Artists) > 0 {
		info.Artist = item.Artists[0].Name
	}
	if len(item.Album.Images) > 0 {
		info.ArtworkURL = item.Album.Images[0].URL
	}
	if !info.IsValid() {
		return nil, fmt.Errorf("track %q without title or artist: %w", info.TrackID, ErrNothingPlaying)
	}

	return &Sample{
		Track:     info,
		ElapsedMs: int64(state.Progress),
		Playing:   state.Playing,
		SampledAt: sampledAt,
	}, nil
}

func LoadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, errors.New("no token path configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	if tokenData.Token == nil {
		return nil, fmt.Errorf("token file %s has no token", path)
	}

	return tokenData.Token, nil
}

func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(TokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, TokenFilePermission)
}
