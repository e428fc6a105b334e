package urlshortener

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// AboutService serves the editable "about the algorithm" text from a file.
type AboutService struct {
	mu   sync.RWMutex
	path string
}

func NewAboutService(path string) *AboutService {
	return &AboutService{path: path}
}

func (s *AboutService) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("about: read", "err", err, "path", s.path)
		return "", BadRequest(MsgCannotGetAbout)
	}
	return string(b), nil
}

// Update replaces the text through a temp file and rename so readers never
// see a partial write.
func (s *AboutService) Update(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, []byte(text)); err != nil {
		slog.Error("about: write", "err", err, "path", s.path)
		return "", BadRequest(MsgCannotUpdateAbout)
	}
	return text, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".about-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
