package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"estate-backend/config"
	"estate-backend/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const resolveConcurrency = 8

type cachedURL struct {
	url       string
	expiresAt time.Time
}

// ImageURLResolver turns stored image references into displayable URLs. It
// never fails: anything it cannot resolve becomes the fallback image.
type ImageURLResolver struct {
	storage  BlobStorage
	bucket   string
	folder   string
	fallback string
	expiry   time.Duration
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedURL
}

func NewImageURLResolver(storage BlobStorage, cfg config.StorageConfig, logger *zap.Logger) *ImageURLResolver {
	r := &ImageURLResolver{
		storage:  storage,
		bucket:   cfg.Bucket,
		folder:   strings.Trim(cfg.Folder, "/"),
		fallback: cfg.FallbackImage,
		expiry:   cfg.SignedURLExpiry,
		ttl:      cfg.URLCacheTTL,
		logger:   logger.Named("image-url"),
		now:      time.Now,
		cache:    make(map[string]cachedURL),
	}
	if r.bucket == "" {
		r.bucket = config.DefaultBucket
	}
	if r.folder == "" {
		r.folder = config.DefaultFolder
	}
	if r.fallback == "" {
		r.fallback = config.DefaultFallbackImage
	}
	if r.expiry <= 0 {
		r.expiry = 24 * time.Hour
	}
	if r.ttl <= 0 || r.ttl >= r.expiry {
		r.ttl = r.expiry / 2
	}
	return r
}

func (r *ImageURLResolver) Fallback() string {
	return r.fallback
}

// Resolve returns a URL for rawPath or the fallback image.
func (r *ImageURLResolver) Resolve(ctx context.Context, rawPath string) (resolved string) {
	raw := strings.TrimSpace(rawPath)
	if raw == "" {
		return r.fallback
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("image url resolution panicked",
				zap.String("path", raw), zap.Any("panic", rec))
			resolved = r.fallback
		}
	}()

	if IsAbsoluteURL(raw) {
		if !validAbsoluteURL(raw) {
			r.logger.Warn("malformed image url", zap.String("url", raw))
			return r.fallback
		}
		return raw
	}

	key := r.NormalizePath(raw)
	if key == "" {
		return r.fallback
	}

	if url, ok := r.cached(key); ok {
		return url
	}

	url, err := r.storage.ResolveURL(ctx, key, r.expiry)
	if err != nil || url == "" {
		r.logger.Warn("image url resolution failed",
			zap.String("path", key), zap.Error(err))
		return r.fallback
	}

	r.store(key, url)
	return url
}

// NormalizePath maps a relative reference onto a storage path inside the
// image folder.
func (r *ImageURLResolver) NormalizePath(raw string) string {
	p := strings.TrimLeft(strings.TrimSpace(raw), "/")
	p = strings.TrimPrefix(p, r.bucket+"/")
	if p != "" && !strings.Contains(p, "/") {
		p = r.folder + "/" + p
	}
	return p
}

// CanonicalPath turns a reference into the form stored in the database: URLs
// into our bucket become bare storage paths, foreign URLs are kept as they are.
func (r *ImageURLResolver) CanonicalPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if IsAbsoluteURL(raw) {
		if p, ok := StoragePathFromURL(raw, r.bucket, r.folder); ok {
			return p
		}
		return raw
	}
	return r.NormalizePath(raw)
}

// OwnsPath reports whether p is a plain object key inside the image folder.
func (r *ImageURLResolver) OwnsPath(p string) bool {
	rest, ok := strings.CutPrefix(p, r.folder+"/")
	if !ok || rest == "" {
		return false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func (r *ImageURLResolver) ResolveProject(ctx context.Context, p *models.Project) {
	if p == nil {
		return
	}
	p.DisplayImageURL = r.Resolve(ctx, p.ImageURL)
}

// ResolveProjects fills DisplayImageURL on every project with bounded
// parallelism. One bad entry never affects the others.
func (r *ImageURLResolver) ResolveProjects(ctx context.Context, projects []models.Project) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)

	for i := range projects {
		p := &projects[i]
		g.Go(func() error {
			p.DisplayImageURL = r.Resolve(gctx, p.ImageURL)
			return nil
		})
	}
	_ = g.Wait()
}

// Invalidate drops the cached URL of one stored reference.
func (r *ImageURLResolver) Invalidate(rawPath string) {
	if IsAbsoluteURL(rawPath) {
		return
	}
	key := r.NormalizePath(rawPath)
	if key == "" {
		return
	}
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

func (r *ImageURLResolver) Purge() {
	r.mu.Lock()
	r.cache = make(map[string]cachedURL)
	r.mu.Unlock()
}

func (r *ImageURLResolver) cached(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[key]
	if !ok {
		return "", false
	}
	if !r.now().Before(entry.expiresAt) {
		delete(r.cache, key)
		return "", false
	}
	return entry.url, true
}

func (r *ImageURLResolver) store(key, url string) {
	r.mu.Lock()
	r.cache[key] = cachedURL{url: url, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
}
