package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	cacheVersion      = 2
	defaultTTLDays    = 30
	defaultMemEntries = 256
	cacheDirName      = "lyrisync"
	lyricsCacheName   = "lyrics"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// TimedLine mirrors lyrics.Line so the cache stays free of domain imports.
type TimedLine struct {
	StartTime float64
	Words     []string
}

type LyricEntry struct {
	Version      uint8
	TrackName    string
	ArtistName   string
	Source       string
	Lines        []TimedLine
	SyncOffsetMs int64
	CreatedAt    int64
	ExpiresAt    int64
}

// DiskCache stores lyric entries as gob files with a bounded LRU in front.
// An empty base path keeps everything in memory.
type DiskCache struct {
	basePath string
	ttl      time.Duration
	mu       sync.Mutex
	mem      *lru.Cache[string, *LyricEntry]
	now      func() time.Time
}

type Option func(*DiskCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *DiskCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *DiskCache) {
		c.now = now
	}
}

// New opens a cache rooted at dir. An empty dir resolves to the XDG cache home.
func New(dir string, opts ...Option) (*DiskCache, error) {
	if dir == "" {
		resolved, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = resolved
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	c := newCache(dir, opts...)
	return c, nil
}

// NewMemory returns a cache that never touches the disk.
func NewMemory(opts ...Option) *DiskCache {
	return newCache("", opts...)
}

func newCache(basePath string, opts ...Option) *DiskCache {
	mem, _ := lru.New[string, *LyricEntry](defaultMemEntries)
	c := &DiskCache{
		basePath: basePath,
		ttl:      defaultTTLDays * 24 * time.Hour,
		mem:      mem,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultDir is $XDG_CACHE_HOME/lyrisync/lyrics, falling back to ~/.cache.
func DefaultDir() (string, error) {
	xdgCache := os.Getenv("XDG_CACHE_HOME")
	if xdgCache != "" {
		return filepath.Join(xdgCache, cacheDirName, lyricsCacheName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".cache", cacheDirName, lyricsCacheName), nil
}

func (c *DiskCache) Dir() string {
	return c.basePath
}

func generateKey(artist, title string) string {
	normalized := strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:12])
}

func (c *DiskCache) getFilePath(key string) string {
	if c.basePath == "" {
		return ""
	}
	return filepath.Join(c.basePath, key+".bin")
}

func (c *DiskCache) Get(artist, title string) (*LyricEntry, error) {
	if artist == "" || title == "" {
		return nil, ErrCacheMiss
	}

	key := generateKey(artist, title)
	now := c.now().Unix()

	c.mu.Lock()
	entry, exists := c.mem.Get(key)
	if exists && entry.ExpiresAt <= now {
		c.mem.Remove(key)
		exists = false
	}
	c.mu.Unlock()

	if exists {
		return entry, nil
	}

	if c.basePath == "" {
		return nil, ErrCacheMiss
	}

	filePath := c.getFilePath(key)
	entry, err := c.readFromDisk(filePath)
	if err != nil {
		return nil, err
	}

	if entry.ExpiresAt <= now {
		_ = os.Remove(filePath)
		return nil, ErrCacheExpired
	}

	c.mu.Lock()
	c.mem.Add(key, entry)
	c.mu.Unlock()

	return entry, nil
}

func (c *DiskCache) Set(artist, title string, entry *LyricEntry) error {
	if artist == "" || title == "" || entry == nil {
		return errors.New("invalid cache entry")
	}

	key := generateKey(artist, title)

	now := c.now()
	entry.Version = cacheVersion
	entry.CreatedAt = now.Unix()
	entry.ExpiresAt = now.Add(c.ttl).Unix()

	c.mu.Lock()
	c.mem.Add(key, entry)
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}

	return c.writeToDisk(c.getFilePath(key), entry)
}

// Offset returns the stored sync offset for a song.
func (c *DiskCache) Offset(artist, title string) (int64, bool) {
	entry, err := c.Get(artist, title)
	if err != nil {
		return 0, false
	}
	return entry.SyncOffsetMs, true
}

// SaveOffset updates the sync offset of an existing entry. Songs that were
// never cached have nowhere to keep an offset and are skipped.
func (c *DiskCache) SaveOffset(artist, title string, offsetMs int64) error {
	entry, err := c.Get(artist, title)
	if err != nil {
		return err
	}

	updated := *entry
	updated.SyncOffsetMs = offsetMs
	return c.Set(artist, title, &updated)
}

func (c *DiskCache) readFromDisk(filePath string) (*LyricEntry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var entry LyricEntry
	err = gob.NewDecoder(file).Decode(&entry)
	if err != nil {
		return nil, ErrCacheCorrupt
	}

	// version mismatch means stale format
	if entry.Version != cacheVersion {
		_ = os.Remove(filePath)
		return nil, ErrCacheCorrupt
	}

	return &entry, nil
}

func (c *DiskCache) writeToDisk(filePath string, entry *LyricEntry) error {
	// write to temp file first, then rename for atomicity
	tmpPath := filePath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(entry)
	if err == nil {
		err = file.Sync()
	}
	if err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	err = file.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, filePath)
}

func (c *DiskCache) binFiles() ([]os.DirEntry, error) {
	if c.basePath == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(c.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	result := entries[:0]
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".bin") {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (c *DiskCache) Clear() error {
	c.mu.Lock()
	c.mem.Purge()
	c.mu.Unlock()

	files, err := c.binFiles()
	if err != nil {
		return err
	}

	for _, entry := range files {
		_ = os.Remove(filepath.Join(c.basePath, entry.Name()))
	}

	return nil
}

// Prune removes expired and unreadable entries from disk.
func (c *DiskCache) Prune() (int, error) {
	files, err := c.binFiles()
	if err != nil {
		return 0, err
	}

	pruned := 0
	now := c.now().Unix()

	for _, dirEntry := range files {
		filePath := filepath.Join(c.basePath, dirEntry.Name())
		entry, err := c.readFromDisk(filePath)
		if err != nil || entry.ExpiresAt <= now {
			_ = os.Remove(filePath)
			pruned++
		}
	}

	c.mu.Lock()
	for _, key := range c.mem.Keys() {
		if entry, ok := c.mem.Peek(key); ok && entry.ExpiresAt <= now {
			c.mem.Remove(key)
		}
	}
	c.mu.Unlock()

	return pruned, nil
}

func (c *DiskCache) Stats() (count int, sizeBytes int64, err error) {
	if c.basePath == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.mem.Len(), 0, nil
	}

	files, err := c.binFiles()
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range files {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		count++
		sizeBytes += info.Size()
	}

	return count, sizeBytes, nil
}

func (c *DiskCache) ListAll() ([]*LyricEntry, error) {
	if c.basePath == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.mem.Values(), nil
	}

	files, err := c.binFiles()
	if err != nil {
		return nil, err
	}

	var result []*LyricEntry
	for _, dirEntry := range files {
		entry, err := c.readFromDisk(filepath.Join(c.basePath, dirEntry.Name()))
		if err != nil {
			continue
		}
		result = append(result, entry)
	}

	return result, nil
}

func (c *DiskCache) Delete(artist, title string) error {
	if artist == "" || title == "" {
		return errors.New("invalid artist or title")
	}

	key := generateKey(artist, title)

	c.mu.Lock()
	c.mem.Remove(key)
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}

	err := os.Remove(c.getFilePath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
