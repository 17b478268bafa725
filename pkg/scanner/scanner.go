// Package scanner enumerates local media files for indexing. The walk is
// depth-bounded, throttled, and cancellable through the context so a running
// scan never starves the rest of the app.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"taura/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var mediaExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".bmp": {}, ".tiff": {}, ".tif": {}, ".heic": {}, ".heif": {},
	".pdf": {},
}

// Item is one discovered media file.
type Item struct {
	Path     string     `json:"path"`
	Size     int64      `json:"size"`
	Modified *time.Time `json:"modified,omitempty"`
	Modality string     `json:"modality"`
}

// Result is the outcome of scanning one root.
type Result struct {
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
	Items   []Item   `json:"items"`
}

// Progress is called periodically with the running file count. It must be
// fast; it runs on the walk goroutine.
type Progress func(count int)

// Scanner walks directory roots looking for media files.
type Scanner struct {
	maxDepth   int
	maxSamples int
	limiter    *rate.Limiter
	progress   Progress
	log        zerolog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxDepth bounds recursion depth relative to the root.
func WithMaxDepth(depth int) Option {
	return func(s *Scanner) { s.maxDepth = depth }
}

// WithMaxSamples bounds how many sample paths Result carries.
func WithMaxSamples(n int) Option {
	return func(s *Scanner) { s.maxSamples = n }
}

// WithThrottle limits how many files per second the walk touches, so a large
// library does not saturate disk I/O.
func WithThrottle(filesPerSec float64) Option {
	return func(s *Scanner) {
		if filesPerSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(filesPerSec), int(filesPerSec))
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(p Progress) Option {
	return func(s *Scanner) { s.progress = p }
}

// New creates a Scanner.
func New(log zerolog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		maxDepth:   8,
		maxSamples: 10,
		log:        log.With().Str("component", "scanner").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and returns all media files found. Unreadable entries are
// skipped, matching how the desktop app tolerates permission holes in user
// libraries.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	if root == "" {
		return nil, fs.ErrInvalid
	}

	start := time.Now()
	result := &Result{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if depthOf(root, path) > s.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := mediaExtensions[ext]; !ok {
			return nil
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		item := Item{Path: path, Modality: modalityFor(ext)}
		if info, err := d.Info(); err == nil {
			item.Size = info.Size()
			if mt := info.ModTime(); !mt.IsZero() {
				item.Modified = &mt
			}
		}

		result.Count++
		result.Items = append(result.Items, item)
		if len(result.Samples) < s.maxSamples {
			result.Samples = append(result.Samples, path)
		}
		metrics.FilesScanned.Inc()
		if s.progress != nil && result.Count%100 == 0 {
			s.progress(result.Count)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	s.log.Info().Str("root", root).Int("count", result.Count).Dur("took", time.Since(start)).Msg("scan complete")
	return result, nil
}

func modalityFor(ext string) string {
	if ext == ".pdf" {
		return "pdf_page"
	}
	return "image"
}

func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
