package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations. Implementations
// must be safe for concurrent readers and writers.
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductSource is the pluggable multi-source search/detail fetcher the
// discovery pipeline consumes. Implementations own their network mechanics.
type ProductSource interface {
	Search(ctx context.Context, query string, priceMax float64) ([]SearchRecord, error)
	Detail(ctx context.Context, productID string) (*DetailRecord, error)
}

// PageFetcher retrieves a bounded prefix of a page body. Timeouts and size
// ceilings belong to the implementation's configuration.
type PageFetcher interface {
	FetchSnippet(ctx context.Context, url string) (string, error)
}

// PageScraper extracts structured product data from a product page.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*ScrapedRecord, error)
}

// ScreenshotCapturer captures an above-the-fold screenshot of a page.
// Optional: the link validator degrades gracefully when nil.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Judge is a yes/no classifier capability. Text judges receive a snippet,
// vision judges receive PNG bytes; either field may be empty for the other
// kind. An error means the stage is skipped, never that the pipeline fails.
type Judge interface {
	Judge(ctx context.Context, input JudgeInput) (JudgeAnswer, error)
}

// JudgeInput carries whichever evidence a judge kind consumes.
type JudgeInput struct {
	Text  string
	Image []byte
}

// FallbackCatalog is the static, network-free seed dataset that guarantees
// must_have categories are never empty when an entry exists for them.
type FallbackCatalog interface {
	Products(category Category) []Product
}

// LikesRepository stores per-user liked-product snapshots. No cross-user
// reads exist anywhere in the core.
type LikesRepository interface {
	Snapshots(ctx context.Context, userID string) ([]LikedSnapshot, error)
	Add(ctx context.Context, userID string, snapshot LikedSnapshot) error
	Remove(ctx context.Context, userID string, productID string) error
}
