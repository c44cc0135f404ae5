package inventory

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StoreStock is one store's availability within an observation. The catalog
// lists a single price per product; it is mirrored onto every store line so a
// per-store price survives a future catalog change without a model change.
type StoreStock struct {
	StoreID  string
	Price    decimal.Decimal
	Quantity int
}

// Observation is a single fetch-time snapshot of one catalog product. It is a
// value: constructed once per cycle, never mutated.
type Observation struct {
	Key           string
	Name          string
	Size          string
	Stores        []StoreStock
	TotalQuantity int
	FetchedAt     time.Time
}

// InStockStores returns the IDs of stores reporting positive quantity.
func (o Observation) InStockStores() []string {
	ids := make([]string, 0, len(o.Stores))
	for _, s := range o.Stores {
		if s.Quantity > 0 {
			ids = append(ids, s.StoreID)
		}
	}
	return ids
}

// LowestPrice returns the minimum price across in-stock stores, falling back
// to the minimum across all listed stores, and zero when no store is listed.
func (o Observation) LowestPrice() decimal.Decimal {
	lowest := decimal.Decimal{}
	found := false
	for _, s := range o.Stores {
		if s.Quantity <= 0 {
			continue
		}
		if !found || s.Price.LessThan(lowest) {
			lowest = s.Price
			found = true
		}
	}
	if found {
		return lowest
	}
	for _, s := range o.Stores {
		if !found || s.Price.LessThan(lowest) {
			lowest = s.Price
			found = true
		}
	}
	return lowest
}

// Source retrieves current observations for a search keyword. A failed fetch
// must surface as an error; an empty slice with a nil error means the catalog
// genuinely has no matches.
type Source interface {
	Fetch(ctx context.Context, keyword string) ([]Observation, error)
}

var keySanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// ProductKey derives the stable identifier for a catalog item: the PLU code
// when the page provides one, otherwise a slug of name and size.
func ProductKey(pluCode, name, size string) string {
	if code := strings.TrimSpace(pluCode); code != "" {
		return "plu:" + code
	}
	slug := strings.ToLower(strings.TrimSpace(name + " " + size))
	slug = keySanitizer.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
