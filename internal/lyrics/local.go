package lyrics

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const SourceLocal = "local"

var nameReplacer = strings.NewReplacer(
	"_", " ", "-", " ",
	",", "", ".", "",
	"!", "", "?", "",
	"(", "", ")", "",
	"[", "", "]", "",
	"'", "", "\"", "",
)

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(nameReplacer.Replace(s))), " ")
}

// LocalSource serves .lrc files from a folder. Files are matched by name:
// "Artist - Title.lrc" first, then "Title.lrc".
type LocalSource struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	index map[string]string
}

func NewLocalSource(dir string, logger *zap.Logger) *LocalSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalSource{dir: dir, logger: logger}
}

func (s *LocalSource) Name() string { return SourceLocal }

func (s *LocalSource) Fetch(ctx context.Context, q Query) (*Track, error) {
	if s.dir == "" || !q.Valid() {
		return nil, ErrNotFound
	}

	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	path, ok := index[normalizeName(q.Artist+" "+q.Title)]
	if !ok {
		path, ok = index[normalizeName(q.Title)]
	}
	if !ok {
		return nil, ErrNotFound
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := ParseLRC(string(raw))
	if len(doc.Lines) == 0 {
		s.logger.Debug("Local lyrics file has no timed lines", zap.String("path", path))
		return nil, ErrNotFound
	}

	return NewTrack(SourceLocal, doc.Lines), nil
}

// Reindex drops the file index so the next lookup rescans the folder.
func (s *LocalSource) Reindex() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

func (s *LocalSource) loadIndex(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return s.index, nil
	}

	index := make(map[string]string)
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".lrc") {
			return nil
		}

		name := normalizeName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if _, exists := index[name]; !exists {
			index[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", s.dir, err)
	}

	s.logger.Debug("Indexed local lyrics", zap.String("dir", s.dir), zap.Int("files", len(index)))
	s.index = index
	return index, nil
}
