package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertUserSQL = `INSERT INTO users (subscriber_id, username)
    VALUES ($1, $2)
    ON CONFLICT (subscriber_id) DO UPDATE
    SET username = EXCLUDED.username,
        is_active = TRUE;`

	listAllWatchesSQL = `SELECT subscriber_id, keyword
    FROM watchlist
    WHERE is_active
    ORDER BY subscriber_id, created_at;`

	distinctKeywordsSQL = `SELECT DISTINCT lower(keyword)
    FROM watchlist
    WHERE is_active
    ORDER BY lower(keyword);`

	addKeywordSQL = `INSERT INTO watchlist (subscriber_id, keyword)
    VALUES ($1, $2)
    ON CONFLICT (subscriber_id, lower(keyword)) WHERE is_active DO NOTHING;`

	removeKeywordSQL = `UPDATE watchlist
    SET is_active = FALSE
    WHERE subscriber_id = $1
      AND lower(keyword) = lower($2)
      AND is_active;`

	clearWatchlistSQL = `UPDATE watchlist
    SET is_active = FALSE
    WHERE subscriber_id = $1
      AND is_active;`

	listWatchlistSQL = `SELECT keyword
    FROM watchlist
    WHERE subscriber_id = $1
      AND is_active
    ORDER BY created_at;`

	getStateSQL = `SELECT
        subscriber_id,
        product_key,
        product_name,
        total_quantity,
        lowest_price,
        stores,
        notified_at,
        version
    FROM notification_states
    WHERE subscriber_id = $1
      AND product_key = $2;`

	// Insert-or-update in one statement; the WHERE clause on the update arm
	// makes the write conditional on the version the caller read. Zero rows
	// affected means a concurrent writer got there first.
	casStateSQL = `INSERT INTO notification_states (
        subscriber_id,
        product_key,
        product_name,
        total_quantity,
        lowest_price,
        stores,
        notified_at,
        version
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (subscriber_id, product_key) DO UPDATE
    SET
        product_name   = EXCLUDED.product_name,
        total_quantity = EXCLUDED.total_quantity,
        lowest_price   = EXCLUDED.lowest_price,
        stores         = EXCLUDED.stores,
        notified_at    = EXCLUDED.notified_at,
        version        = EXCLUDED.version
    WHERE notification_states.version = $9;`

	deleteStatesForSubscriberSQL = `DELETE FROM notification_states
    WHERE subscriber_id = $1;`

	insertNotificationSQL = `INSERT INTO notifications (
        subscriber_id, keyword, product_key, product_name, kind, detail, delivered
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	listRecentNotificationsSQL = `SELECT
        id, subscriber_id, keyword, product_key, product_name, kind, detail, delivered, created_at
    FROM notifications
    ORDER BY created_at DESC
    LIMIT $1;`

	insertSnapshotSQL = `INSERT INTO product_snapshots (
        product_key, product_name, total_quantity, lowest_price, store_count, fetched_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listSnapshotsBetweenSQL = `SELECT
        id, product_key, product_name, total_quantity, lowest_price, store_count, fetched_at
    FROM product_snapshots
    WHERE product_key = $1
      AND fetched_at >= $2
      AND fetched_at < $3
    ORDER BY fetched_at;`
)

// WatchlistStore exposes the subscriber watch terms.
type WatchlistStore interface {
	ListAll(ctx context.Context) (map[int64][]string, error)
	DistinctKeywords(ctx context.Context) ([]string, error)
	AddKeyword(ctx context.Context, subscriberID int64, keyword string) (bool, error)
	RemoveKeyword(ctx context.Context, subscriberID int64, keyword string) (bool, error)
	ClearWatchlist(ctx context.Context, subscriberID int64) (int64, error)
	ListWatchlist(ctx context.Context, subscriberID int64) ([]string, error)
	UpsertUser(ctx context.Context, subscriberID int64, username string) error
}

// StateStore is the durable notification-history contract. Writers obtain the
// current version via GetState and hand it back to CompareAndSwapState; the
// stored version becomes oldVersion+1 on success.
type StateStore interface {
	GetState(ctx context.Context, subscriberID int64, productKey string) (NotificationState, bool, error)
	CompareAndSwapState(ctx context.Context, state NotificationState, oldVersion int64) (bool, error)
	DeleteStatesForSubscriber(ctx context.Context, subscriberID int64) (int64, error)
}

// NotificationLog records dispatch attempts for auditing.
type NotificationLog interface {
	InsertNotification(ctx context.Context, rec NotificationRecord) error
	ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)
}

// SnapshotStore keeps per-product observation history.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap ProductSnapshot) error
	ListSnapshotsBetween(ctx context.Context, productKey string, from, to time.Time) ([]ProductSnapshot, error)
}

// Store aggregates all persistence concerns over one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertUser registers or reactivates a subscriber.
func (s *Store) UpsertUser(ctx context.Context, subscriberID int64, username string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertUserSQL, subscriberID, username); execErr != nil {
		return fmt.Errorf("upsert user: %w", execErr)
	}
	return nil
}

// ListAll returns every active watch entry grouped by subscriber.
func (s *Store) ListAll(ctx context.Context) (map[int64][]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAllWatchesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list watch entries: %w", queryErr)
	}
	defer rows.Close()

	entries := make(map[int64][]string)
	for rows.Next() {
		var subscriberID int64
		var keyword string
		if err := rows.Scan(&subscriberID, &keyword); err != nil {
			return nil, err
		}
		entries[subscriberID] = append(entries[subscriberID], keyword)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// DistinctKeywords returns the folded set of keywords across all subscribers.
func (s *Store) DistinctKeywords(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, distinctKeywordsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list distinct keywords: %w", queryErr)
	}
	defer rows.Close()

	keywords := make([]string, 0)
	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, err
		}
		keywords = append(keywords, keyword)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return keywords, nil
}

// AddKeyword adds a watch term; returns false when the subscriber already
// watches it (case-insensitive).
func (s *Store) AddKeyword(ctx context.Context, subscriberID int64, keyword string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, addKeywordSQL, subscriberID, keyword)
	if execErr != nil {
		return false, fmt.Errorf("add keyword: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// RemoveKeyword deactivates a watch term; returns false when it was absent.
func (s *Store) RemoveKeyword(ctx context.Context, subscriberID int64, keyword string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, removeKeywordSQL, subscriberID, keyword)
	if execErr != nil {
		return false, fmt.Errorf("remove keyword: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ClearWatchlist deactivates all of a subscriber's watch terms.
func (s *Store) ClearWatchlist(ctx context.Context, subscriberID int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, clearWatchlistSQL, subscriberID)
	if execErr != nil {
		return 0, fmt.Errorf("clear watchlist: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

// ListWatchlist returns a subscriber's active watch terms in creation order.
func (s *Store) ListWatchlist(ctx context.Context, subscriberID int64) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWatchlistSQL, subscriberID)
	if queryErr != nil {
		return nil, fmt.Errorf("list watchlist: %w", queryErr)
	}
	defer rows.Close()

	keywords := make([]string, 0)
	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, err
		}
		keywords = append(keywords, keyword)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return keywords, nil
}

// GetState loads the last-notified baseline for one pair.
func (s *Store) GetState(ctx context.Context, subscriberID int64, productKey string) (NotificationState, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return NotificationState{}, false, err
	}

	var state NotificationState
	var priceStr string
	row := pool.QueryRow(ctx, getStateSQL, subscriberID, productKey)
	scanErr := row.Scan(
		&state.SubscriberID,
		&state.ProductKey,
		&state.ProductName,
		&state.TotalQuantity,
		&priceStr,
		&state.Stores,
		&state.NotifiedAt,
		&state.Version,
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return NotificationState{}, false, nil
		}
		return NotificationState{}, false, fmt.Errorf("get state: %w", scanErr)
	}

	state.LowestPrice, err = decimal.NewFromString(priceStr)
	if err != nil {
		return NotificationState{}, false, fmt.Errorf("parse lowest price: %w", err)
	}
	return state, true, nil
}

// CompareAndSwapState writes the state iff the stored version still matches
// oldVersion (0 for a pair never written). On success the stored version is
// oldVersion+1.
func (s *Store) CompareAndSwapState(ctx context.Context, state NotificationState, oldVersion int64) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	stores := state.Stores
	if stores == nil {
		stores = []string{}
	}

	cmdTag, execErr := pool.Exec(ctx, casStateSQL,
		state.SubscriberID,
		state.ProductKey,
		state.ProductName,
		state.TotalQuantity,
		state.LowestPrice.String(),
		stores,
		state.NotifiedAt,
		oldVersion+1,
		oldVersion,
	)
	if execErr != nil {
		return false, fmt.Errorf("compare-and-swap state: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// DeleteStatesForSubscriber drops all baselines for a subscriber, used by the
// watchlist clear flow.
func (s *Store) DeleteStatesForSubscriber(ctx context.Context, subscriberID int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteStatesForSubscriberSQL, subscriberID)
	if execErr != nil {
		return 0, fmt.Errorf("delete states for subscriber: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

// InsertNotification appends a dispatch audit row.
func (s *Store) InsertNotification(ctx context.Context, rec NotificationRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertNotificationSQL,
		rec.SubscriberID,
		rec.Keyword,
		rec.ProductKey,
		rec.ProductName,
		rec.Kind,
		rec.Detail,
		rec.Delivered,
	)
	if execErr != nil {
		return fmt.Errorf("insert notification: %w", execErr)
	}
	return nil
}

// ListRecentNotifications lists the most recent dispatch records.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNotificationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent notifications: %w", queryErr)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0, limit)
	for rows.Next() {
		var rec NotificationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SubscriberID,
			&rec.Keyword,
			&rec.ProductKey,
			&rec.ProductName,
			&rec.Kind,
			&rec.Detail,
			&rec.Delivered,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// InsertSnapshot appends one product history row.
func (s *Store) InsertSnapshot(ctx context.Context, snap ProductSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertSnapshotSQL,
		snap.ProductKey,
		snap.ProductName,
		snap.TotalQuantity,
		snap.LowestPrice.String(),
		snap.StoreCount,
		snap.FetchedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists a product's history within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, productKey string, from, to time.Time) ([]ProductSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, productKey, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]ProductSnapshot, 0)
	for rows.Next() {
		var snap ProductSnapshot
		var priceStr string
		if err := rows.Scan(
			&snap.ID,
			&snap.ProductKey,
			&snap.ProductName,
			&snap.TotalQuantity,
			&priceStr,
			&snap.StoreCount,
			&snap.FetchedAt,
		); err != nil {
			return nil, err
		}
		var convErr error
		snap.LowestPrice, convErr = decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse lowest price: %w", convErr)
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

var (
	_ WatchlistStore  = (*Store)(nil)
	_ StateStore      = (*Store)(nil)
	_ NotificationLog = (*Store)(nil)
	_ SnapshotStore   = (*Store)(nil)
)
