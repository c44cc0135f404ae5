// Package diff decides whether a fresh inventory observation represents a
// notification-worthy transition from the last state a subscriber was told
// about. Evaluate is pure: no I/O, no clock, deterministic over its inputs.
package diff

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"abc-inventory-alerts/internal/inventory"
	"abc-inventory-alerts/internal/storage"
)

// Kind classifies a notification-worthy transition.
type Kind string

const (
	KindBecameAvailable Kind = "became_available"
	KindNewStore        Kind = "new_store"
	KindPriceDrop       Kind = "price_drop"
	KindLowStock        Kind = "low_stock"
	KindOutOfStock      Kind = "out_of_stock"
)

// Event is the transient output of one evaluation. It is consumed immediately
// by the dispatcher; its durable effect is the NotificationState write.
// SubscriberID and Keyword are filled in by the caller, which knows the pair
// being evaluated even when no previous state exists.
type Event struct {
	SubscriberID int64
	Keyword      string
	ProductKey   string
	ProductName  string
	ProductSize  string
	Kind         Kind

	OldTotal  int
	NewTotal  int
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	OldStores []string
	NewStores []string
	// AddedStores is populated for KindNewStore.
	AddedStores []string
}

// Detail renders a one-line human summary of the transition.
func (e *Event) Detail() string {
	switch e.Kind {
	case KindBecameAvailable:
		return fmt.Sprintf("now available (%d in stock across %d stores)", e.NewTotal, len(e.NewStores))
	case KindNewStore:
		return fmt.Sprintf("now available at %d new store(s)", len(e.AddedStores))
	case KindPriceDrop:
		return fmt.Sprintf("price dropped from $%s to $%s", e.OldPrice.StringFixed(2), e.NewPrice.StringFixed(2))
	case KindLowStock:
		return fmt.Sprintf("low stock: only %d left", e.NewTotal)
	case KindOutOfStock:
		return "no longer available"
	default:
		return string(e.Kind)
	}
}

// Evaluate applies the change policy in priority order and returns at most one
// event. previous is nil when this subscriber has never been notified about
// this product; that is a valid input, not an error.
//
// Priority: became-available pre-empts every other rule because reappearing
// stock is the most actionable change; out-of-stock is checked last since no
// positive rule can fire in the same cycle it applies.
func Evaluate(previous *storage.NotificationState, current inventory.Observation, lowStockThreshold int) *Event {
	currentStores := current.InStockStores()
	currentPrice := current.LowestPrice()

	event := func(kind Kind) *Event {
		e := &Event{
			ProductKey:  current.Key,
			ProductName: current.Name,
			ProductSize: current.Size,
			Kind:        kind,
			NewTotal:    current.TotalQuantity,
			NewPrice:    currentPrice,
			NewStores:   currentStores,
		}
		if previous != nil {
			e.OldTotal = previous.TotalQuantity
			e.OldPrice = previous.LowestPrice
			e.OldStores = previous.Stores
		}
		return e
	}

	// 1. Newly in stock.
	if (previous == nil || previous.TotalQuantity == 0) && current.TotalQuantity > 0 {
		return event(KindBecameAvailable)
	}
	if previous == nil {
		return nil
	}

	if current.TotalQuantity > 0 {
		// 2. New store added: strict superset of the previous in-stock set.
		if added := addedStores(currentStores, previous.Stores); len(added) > 0 && coversAll(currentStores, previous.Stores) {
			e := event(KindNewStore)
			e.AddedStores = added
			return e
		}

		// 3. Price drop. A zero current price means the page had no parseable
		// price; never treat that as a drop.
		if currentPrice.IsPositive() && currentPrice.LessThan(previous.LowestPrice) {
			return event(KindPriceDrop)
		}

		// 4. Low stock, edge-triggered on the threshold crossing.
		if current.TotalQuantity < lowStockThreshold && previous.TotalQuantity >= lowStockThreshold {
			return event(KindLowStock)
		}
	}

	// 5. Went out of stock.
	if previous.TotalQuantity > 0 && current.TotalQuantity == 0 {
		return event(KindOutOfStock)
	}

	return nil
}

// NextState builds the refreshed baseline from the current observation. The
// version is managed by the store's compare-and-swap, not here.
func NextState(subscriberID int64, previous *storage.NotificationState, current inventory.Observation, now time.Time) storage.NotificationState {
	price := current.LowestPrice()
	if price.IsZero() && previous != nil {
		// Keep the last meaningful price so a restock does not compare
		// against zero.
		price = previous.LowestPrice
	}

	stores := current.InStockStores()
	sort.Strings(stores)

	return storage.NotificationState{
		SubscriberID:  subscriberID,
		ProductKey:    current.Key,
		ProductName:   current.Name,
		TotalQuantity: current.TotalQuantity,
		LowestPrice:   price,
		Stores:        stores,
		NotifiedAt:    now,
	}
}

// Changed reports whether any tracked field differs between the baseline and
// the observation, so the scheduler can refresh silently when no rule fired.
func Changed(previous storage.NotificationState, current inventory.Observation) bool {
	if previous.TotalQuantity != current.TotalQuantity {
		return true
	}
	if price := current.LowestPrice(); !price.IsZero() && !price.Equal(previous.LowestPrice) {
		return true
	}
	return !sameSet(previous.Stores, current.InStockStores())
}

func addedStores(current, previous []string) []string {
	seen := make(map[string]struct{}, len(previous))
	for _, s := range previous {
		seen[s] = struct{}{}
	}
	var added []string
	for _, s := range current {
		if _, ok := seen[s]; !ok {
			added = append(added, s)
		}
	}
	sort.Strings(added)
	return added
}

func coversAll(current, previous []string) bool {
	seen := make(map[string]struct{}, len(current))
	for _, s := range current {
		seen[s] = struct{}{}
	}
	for _, s := range previous {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}
