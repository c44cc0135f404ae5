package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"abc-inventory-alerts/internal/inventory"
	"abc-inventory-alerts/internal/monitor"
	"abc-inventory-alerts/internal/storage"
)

// SimulateAlert pushes a synthetic restock through the real diff, dispatch,
// and message-rendering path so a deployment can be verified end to end
// without waiting for actual inventory movement.
func (a *App) SimulateAlert(ctx context.Context, subscriberID int64, keyword string) error {
	if !a.Config.Telegram.Enabled {
		return errors.New("telegram is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	src := &staticSource{keyword: keyword}
	wl := &staticWatchlist{subscriberID: subscriberID, keyword: keyword}
	states := &memoryStates{}

	svc := monitor.New(a.Config.Monitor, nil, src, wl, states, nil, nil, notifier, a.Logger)
	return svc.RunCycle(ctx, time.Now().UTC())
}

// staticSource returns one in-stock product named after the watched keyword.
type staticSource struct {
	keyword string
}

func (s *staticSource) Fetch(ctx context.Context, keyword string) ([]inventory.Observation, error) {
	name := "Test Bottle (" + s.keyword + ")"
	return []inventory.Observation{{
		Key:  inventory.ProductKey("", name, "750ml"),
		Name: name,
		Size: "750ml",
		Stores: []inventory.StoreStock{{
			StoreID:  "Simulated Store #1",
			Price:    decimal.NewFromFloat(19.99),
			Quantity: 6,
		}},
		TotalQuantity: 6,
		FetchedAt:     time.Now().UTC(),
	}}, nil
}

type staticWatchlist struct {
	subscriberID int64
	keyword      string
}

func (s *staticWatchlist) ListAll(ctx context.Context) (map[int64][]string, error) {
	return map[int64][]string{s.subscriberID: {s.keyword}}, nil
}

func (s *staticWatchlist) DistinctKeywords(ctx context.Context) ([]string, error) {
	return []string{s.keyword}, nil
}

func (s *staticWatchlist) AddKeyword(ctx context.Context, subscriberID int64, keyword string) (bool, error) {
	return false, errors.New("read-only watchlist")
}

func (s *staticWatchlist) RemoveKeyword(ctx context.Context, subscriberID int64, keyword string) (bool, error) {
	return false, errors.New("read-only watchlist")
}

func (s *staticWatchlist) ClearWatchlist(ctx context.Context, subscriberID int64) (int64, error) {
	return 0, errors.New("read-only watchlist")
}

func (s *staticWatchlist) ListWatchlist(ctx context.Context, subscriberID int64) ([]string, error) {
	return []string{s.keyword}, nil
}

func (s *staticWatchlist) UpsertUser(ctx context.Context, subscriberID int64, username string) error {
	return nil
}

// memoryStates discards everything so a simulation never touches real rows.
type memoryStates struct{}

func (m *memoryStates) GetState(ctx context.Context, subscriberID int64, productKey string) (storage.NotificationState, bool, error) {
	return storage.NotificationState{}, false, nil
}

func (m *memoryStates) CompareAndSwapState(ctx context.Context, state storage.NotificationState, oldVersion int64) (bool, error) {
	return true, nil
}

func (m *memoryStates) DeleteStatesForSubscriber(ctx context.Context, subscriberID int64) (int64, error) {
	return 0, nil
}

var _ inventory.Source = (*staticSource)(nil)
var _ storage.WatchlistStore = (*staticWatchlist)(nil)
var _ storage.StateStore = (*memoryStates)(nil)
