package domain

// SourceKind tags the origin of a raw retailer record. Each kind has its own
// explicit mapping into Product in the normalizer, never duck-typed access.
type SourceKind string

const (
	SourceSearch   SourceKind = "search"
	SourceDetail   SourceKind = "detail"
	SourceScraped  SourceKind = "scraped"
	SourceFallback SourceKind = "fallback"
)

// SearchRecord is a bare search-result row from the shopping feed.
type SearchRecord struct {
	ID            string
	Title         string
	Source        string
	Price         *float64
	OriginalPrice *float64
	Rating        *float64
	ReviewsCount  *int
	DeliveryText  string
	ThumbnailURL  string
	ProductURL    string
}

// DetailRecord is a detail/multi-store lookup result. It is considered more
// trustworthy than a SearchRecord for the same offer.
type DetailRecord struct {
	ID           string
	Title        string
	Source       string
	Price        *float64
	ShippingCost *float64
	Rating       *float64
	ReviewsCount *int
	DeliveryText string
	Brand        string
	Description  string
	Sizes        []string
	Colors       []string
	ProductURL   string
	Highlights   []string
	StoreCount   int
}

// ScrapedRecord is structured data lifted off a product page (schema.org).
type ScrapedRecord struct {
	URL          string
	Name         string
	Price        *float64
	Currency     string
	Availability string
	Rating       *float64
	ReviewsCount *int
	Brand        string
	Description  string
	ImageURL     string
}

// FallbackRecord is an entry from the static seed catalog. It requires no
// network access, which is what makes the must-have availability guarantee
// possible.
type FallbackRecord struct {
	Product  Product
	Category Category
}

// SourceRecord is the tagged variant the normalizer consumes. Exactly one of
// the pointer fields matching Kind is set.
type SourceRecord struct {
	Kind     SourceKind
	Search   *SearchRecord
	Detail   *DetailRecord
	Scraped  *ScrapedRecord
	Fallback *FallbackRecord
}
