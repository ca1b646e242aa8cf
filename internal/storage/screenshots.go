package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/patrickmn/go-cache"
)

const framePattern = "screenshot_*.png"

// Archive stores captured frames and their descriptions keyed by a
// sequential index: screenshot_N.png and screenshot_N.txt.
type Archive struct {
	dir   string
	cache *cache.Cache
}

func NewArchive(dir string, ttl time.Duration) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("screenshot dir: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Archive{
		dir:   dir,
		cache: cache.New(ttl, 2*ttl),
	}, nil
}

func (a *Archive) Dir() string { return a.dir }

func (a *Archive) FramePath(index int) string {
	return filepath.Join(a.dir, fmt.Sprintf("screenshot_%d.png", index))
}

func (a *Archive) DescriptionPath(index int) string {
	return filepath.Join(a.dir, fmt.Sprintf("screenshot_%d.txt", index))
}

// LatestIndex returns the highest frame index on disk, or 0 for an empty
// archive. A new session continues numbering after it.
func (a *Archive) LatestIndex() (int, error) {
	matches, err := doublestar.Glob(os.DirFS(a.dir), framePattern)
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(m, "screenshot_"), ".png"))
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (a *Archive) SaveFrame(index int, png []byte) error {
	return File{Path: a.FramePath(index)}.Write(png)
}

func (a *Archive) Frame(index int) ([]byte, error) {
	return File{Path: a.FramePath(index)}.Read()
}

func (a *Archive) SaveDescription(index int, text string) error {
	if err := (File{Path: a.DescriptionPath(index)}).Write([]byte(text)); err != nil {
		return err
	}
	a.cache.Set(strconv.Itoa(index), text, cache.DefaultExpiration)
	return nil
}

// Description returns the stored description for index. ok is false when
// nothing was stored; err is only set for unexpected read failures.
func (a *Archive) Description(index int) (text string, ok bool, err error) {
	key := strconv.Itoa(index)
	if v, found := a.cache.Get(key); found {
		return v.(string), true, nil
	}
	data, err := File{Path: a.DescriptionPath(index)}.Read()
	if err != nil {
		if IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	text = string(data)
	a.cache.Set(key, text, cache.DefaultExpiration)
	return text, true, nil
}
