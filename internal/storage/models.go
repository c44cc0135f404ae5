package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationState is the durable "last notified" baseline for one
// (subscriber, product) pair. Version increases by exactly one on every
// successful write; see CompareAndSwapState.
type NotificationState struct {
	SubscriberID  int64
	ProductKey    string
	ProductName   string
	TotalQuantity int
	LowestPrice   decimal.Decimal
	Stores        []string
	NotifiedAt    time.Time
	Version       int64
}

// WatchEntry pairs a subscriber with one of their watch keywords.
type WatchEntry struct {
	SubscriberID int64
	Keyword      string
}

// NotificationRecord is the audit row written after a dispatch attempt.
type NotificationRecord struct {
	ID           int64
	SubscriberID int64
	Keyword      string
	ProductKey   string
	ProductName  string
	Kind         string
	Detail       string
	Delivered    bool
	CreatedAt    time.Time
}

// ProductSnapshot is a per-cycle, per-product history row (subscriber
// independent) powering the export command.
type ProductSnapshot struct {
	ID            int64
	ProductKey    string
	ProductName   string
	TotalQuantity int
	LowestPrice   decimal.Decimal
	StoreCount    int
	FetchedAt     time.Time
}
