// Package monitor drives the watch cycle: fan-in subscriber keywords, fetch
// each distinct keyword once, diff every matched (subscriber, product) pair
// against its stored baseline, dispatch at most one event per pair, and
// persist the refreshed baseline.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"abc-inventory-alerts/internal/alerting"
	"abc-inventory-alerts/internal/config"
	"abc-inventory-alerts/internal/diff"
	"abc-inventory-alerts/internal/inventory"
	"abc-inventory-alerts/internal/scheduler"
	"abc-inventory-alerts/internal/storage"
)

// Service orchestrates fetching, diffing, persistence, and dispatch.
type Service struct {
	scheduler *scheduler.Scheduler
	source    inventory.Source
	watchlist storage.WatchlistStore
	states    storage.StateStore
	auditLog  storage.NotificationLog
	snapshots storage.SnapshotStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	threshold     int
	fetchTimeout  time.Duration
	maxConcurrent int
}

// New constructs the monitoring service. auditLog, snapshots, and notifier
// may be nil; the cycle then runs diff-and-persist only.
func New(
	cfg config.MonitorConfig,
	sched *scheduler.Scheduler,
	source inventory.Source,
	watchlist storage.WatchlistStore,
	states storage.StateStore,
	auditLog storage.NotificationLog,
	snapshots storage.SnapshotStore,
	notifier alerting.Notifier,
	logger zerolog.Logger,
) *Service {
	maxConcurrent := cfg.MaxConcurrentFetches
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = 10
	}

	return &Service{
		scheduler:     sched,
		source:        source,
		watchlist:     watchlist,
		states:        states,
		auditLog:      auditLog,
		snapshots:     snapshots,
		notifier:      notifier,
		logger:        logger.With().Str("component", "monitor").Logger(),
		threshold:     threshold,
		fetchTimeout:  cfg.FetchTimeout,
		maxConcurrent: maxConcurrent,
	}
}

// Run begins the periodic monitoring loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunCycle)
}

// RunCycle executes one full pass: fetch every distinct keyword, then
// evaluate each watching subscriber against each matched product. Failures
// are isolated per keyword and per pair; only a failure to read the
// watchlist aborts the cycle.
func (s *Service) RunCycle(ctx context.Context, started time.Time) error {
	entries, err := s.watchlist.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list watch entries: %w", err)
	}
	if len(entries) == 0 {
		s.logger.Debug().Msg("no watch entries; skipping cycle")
		return nil
	}

	groups := groupByKeyword(entries)
	keywords := make([]string, 0, len(groups))
	for kw := range groups {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	s.logger.Info().
		Int("subscribers", len(entries)).
		Int("distinct_keywords", len(keywords)).
		Msg("starting watchlist cycle")

	results := s.fetchAll(ctx, keywords)

	var evaluated, dispatched, fetchFailures int
	snapshotted := make(map[string]struct{})

	for _, kw := range keywords {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res := results[kw]
		if res.err != nil {
			// One keyword's fetch failure never blocks the others.
			fetchFailures++
			s.logger.Error().Err(res.err).Str("keyword", kw).Msg("fetch failed; skipping keyword")
			continue
		}
		if len(res.items) == 0 {
			s.logger.Debug().Str("keyword", kw).Msg("no catalog matches")
			continue
		}

		s.recordSnapshots(ctx, res.items, snapshotted)

		for _, subscriberID := range groups[kw] {
			for i := range res.items {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				obs := res.items[i]
				if !keywordMatches(kw, obs.Name) {
					continue
				}
				evaluated++
				if s.evaluatePair(ctx, subscriberID, kw, obs, started) {
					dispatched++
				}
			}
		}
	}

	s.logger.Info().
		Int("pairs_evaluated", evaluated).
		Int("events_dispatched", dispatched).
		Int("fetch_failures", fetchFailures).
		Dur("elapsed", time.Since(started)).
		Msg("watchlist cycle complete")
	return nil
}

type fetchResult struct {
	items []inventory.Observation
	err   error
}

// fetchAll runs one fetch per distinct keyword through a bounded worker pool.
// Each fetch carries its own timeout so a stalled catalog response counts as
// that keyword's failure instead of wedging the cycle.
func (s *Service) fetchAll(ctx context.Context, keywords []string) map[string]fetchResult {
	results := make(map[string]fetchResult, len(keywords))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrent)

	for _, kw := range keywords {
		wg.Add(1)
		go func(kw string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				results[kw] = fetchResult{err: ctx.Err()}
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			fetchCtx := ctx
			if s.fetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
				defer cancel()
			}

			items, err := s.source.Fetch(fetchCtx, kw)
			mu.Lock()
			results[kw] = fetchResult{items: items, err: err}
			mu.Unlock()
		}(kw)
	}

	wg.Wait()
	return results
}

// evaluatePair runs the diff policy for one (subscriber, product) pair and
// reports whether an event was produced. Dispatch failure never rolls back
// the state write: the baseline tracks observed inventory truth, not
// delivery success.
func (s *Service) evaluatePair(ctx context.Context, subscriberID int64, keyword string, obs inventory.Observation, now time.Time) bool {
	previous, found, err := s.states.GetState(ctx, subscriberID, obs.Key)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("subscriber", subscriberID).
			Str("product", obs.Key).
			Msg("state read failed; skipping pair")
		return false
	}

	var prevPtr *storage.NotificationState
	if found {
		prevPtr = &previous
	}

	event := diff.Evaluate(prevPtr, obs, s.threshold)
	if event == nil {
		// No state row exists before the first notification-worthy event.
		if found && diff.Changed(previous, obs) {
			s.writeState(ctx, prevPtr, subscriberID, obs, now)
		}
		return false
	}

	event.SubscriberID = subscriberID
	event.Keyword = keyword

	delivered := true
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, subscriberID, event); err != nil {
			delivered = false
			s.logger.Error().Err(err).
				Int64("subscriber", subscriberID).
				Str("product", obs.Key).
				Str("kind", string(event.Kind)).
				Msg("dispatch failed; state still commits")
		}
	}

	if s.auditLog != nil {
		rec := storage.NotificationRecord{
			SubscriberID: subscriberID,
			Keyword:      keyword,
			ProductKey:   obs.Key,
			ProductName:  obs.Name,
			Kind:         string(event.Kind),
			Detail:       event.Detail(),
			Delivered:    delivered,
		}
		if err := s.auditLog.InsertNotification(ctx, rec); err != nil {
			s.logger.Error().Err(err).Msg("failed to record notification audit row")
		}
	}

	s.writeState(ctx, prevPtr, subscriberID, obs, now)
	return true
}

// writeState commits the refreshed baseline with optimistic concurrency: on a
// version conflict it re-reads once and retries against the fresher row, then
// gives up and logs. It never overwrites a newer version blindly.
func (s *Service) writeState(ctx context.Context, previous *storage.NotificationState, subscriberID int64, obs inventory.Observation, now time.Time) {
	oldVersion := int64(0)
	if previous != nil {
		oldVersion = previous.Version
	}

	next := diff.NextState(subscriberID, previous, obs, now)
	ok, err := s.states.CompareAndSwapState(ctx, next, oldVersion)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("subscriber", subscriberID).
			Str("product", obs.Key).
			Msg("state write failed")
		return
	}
	if ok {
		return
	}

	fresh, found, err := s.states.GetState(ctx, subscriberID, obs.Key)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("subscriber", subscriberID).
			Str("product", obs.Key).
			Msg("state re-read failed after conflict")
		return
	}

	oldVersion = 0
	var freshPtr *storage.NotificationState
	if found {
		freshPtr = &fresh
		oldVersion = fresh.Version
	}

	next = diff.NextState(subscriberID, freshPtr, obs, now)
	ok, err = s.states.CompareAndSwapState(ctx, next, oldVersion)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("subscriber", subscriberID).
			Str("product", obs.Key).
			Msg("state write retry failed")
		return
	}
	if !ok {
		s.logger.Warn().
			Int64("subscriber", subscriberID).
			Str("product", obs.Key).
			Msg("write conflict after retry; skipping state update this cycle")
	}
}

// recordSnapshots appends one history row per product per cycle, deduplicated
// across keywords that matched the same product.
func (s *Service) recordSnapshots(ctx context.Context, items []inventory.Observation, seen map[string]struct{}) {
	if s.snapshots == nil {
		return
	}
	for i := range items {
		obs := items[i]
		if _, done := seen[obs.Key]; done {
			continue
		}
		seen[obs.Key] = struct{}{}

		snap := storage.ProductSnapshot{
			ProductKey:    obs.Key,
			ProductName:   obs.Name,
			TotalQuantity: obs.TotalQuantity,
			LowestPrice:   obs.LowestPrice(),
			StoreCount:    len(obs.InStockStores()),
			FetchedAt:     obs.FetchedAt,
		}
		if err := s.snapshots.InsertSnapshot(ctx, snap); err != nil {
			s.logger.Error().Err(err).Str("product", obs.Key).Msg("failed to record product snapshot")
		}
	}
}

// groupByKeyword inverts subscriber→keywords into folded keyword→subscribers.
// Ten subscribers watching "bourbon" produce one fetch, not ten.
func groupByKeyword(entries map[int64][]string) map[string][]int64 {
	groups := make(map[string][]int64)
	for subscriberID, keywords := range entries {
		for _, kw := range keywords {
			folded := foldKeyword(kw)
			if folded == "" {
				continue
			}
			groups[folded] = append(groups[folded], subscriberID)
		}
	}
	for kw := range groups {
		subs := groups[kw]
		sort.Slice(subs, func(i, j int) bool { return subs[i] < subs[j] })
		groups[kw] = subs
	}
	return groups
}

func foldKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}

// keywordMatches applies the client-side match policy: case-insensitive
// substring against the display name. The catalog already filters
// server-side; this only guards against loose server matches.
func keywordMatches(folded, productName string) bool {
	return strings.Contains(strings.ToLower(productName), folded)
}
