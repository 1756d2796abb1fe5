package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
)

// Catalog reads episode files from DATA_DIR/episodes. Every file is validated
// against the episode schema; files that fail are logged and skipped.
type Catalog struct {
	dir    string
	logger *slog.Logger
}

// NewCatalog creates a catalog rooted at dataDir.
func NewCatalog(dataDir string, logger *slog.Logger) *Catalog {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &Catalog{
		dir:    filepath.Join(dataDir, "episodes"),
		logger: logger,
	}
}

// Dir returns the directory episodes are read from.
func (c *Catalog) Dir() string {
	return c.dir
}

func (c *Catalog) ListEpisodes(ctx context.Context) ([]episode.Episode, error) {
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil, nil
	}

	var episodes []episode.Episode
	seen := make(map[string]string)

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ep, err := readEpisode(path)
		if err != nil {
			c.logger.Warn("Skipping malformed episode file", "path", path, "error", err)
			return nil
		}
		if prev, dup := seen[ep.ID]; dup {
			c.logger.Warn("Skipping duplicate episode id", "path", path, "episode_id", ep.ID, "first", prev)
			return nil
		}
		seen[ep.ID] = path
		episodes = append(episodes, *ep)
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to walk episodes directory", "error", err)
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	return episodes, nil
}

// GetEpisode looks for <id>.json first and falls back to scanning the catalog,
// since file names are not required to match ids.
func (c *Catalog) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, nil
	}

	path := filepath.Join(c.dir, id+".json")
	if ep, err := readEpisode(path); err == nil && ep.ID == id {
		return ep, nil
	} else if err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to read episode file", "path", path, "error", err)
	}

	episodes, err := c.ListEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range episodes {
		if episodes[i].ID == id {
			return &episodes[i], nil
		}
	}
	return nil, nil
}

func readEpisode(path string) (*episode.Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return episode.Parse(data)
}
