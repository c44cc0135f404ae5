package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// AddWatch registers a keyword on a subscriber's watchlist.
func (a *App) AddWatch(ctx context.Context, subscriberID int64, username, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return errors.New("keyword must not be empty")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage watchlist")
	}
	defer closeStore()

	if err := store.UpsertUser(ctx, subscriberID, username); err != nil {
		return err
	}

	added, err := store.AddKeyword(ctx, subscriberID, keyword)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(os.Stdout, "%q is already on the watchlist\n", keyword)
		return nil
	}
	fmt.Fprintf(os.Stdout, "watching %q\n", keyword)
	return nil
}

// RemoveWatch deactivates a keyword on a subscriber's watchlist.
func (a *App) RemoveWatch(ctx context.Context, subscriberID int64, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return errors.New("keyword must not be empty")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage watchlist")
	}
	defer closeStore()

	removed, err := store.RemoveKeyword(ctx, subscriberID, keyword)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(os.Stdout, "%q was not on the watchlist\n", keyword)
		return nil
	}
	fmt.Fprintf(os.Stdout, "stopped watching %q\n", keyword)
	return nil
}

// ListWatch prints a subscriber's active keywords.
func (a *App) ListWatch(ctx context.Context, subscriberID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage watchlist")
	}
	defer closeStore()

	keywords, err := store.ListWatchlist(ctx, subscriberID)
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		fmt.Fprintln(os.Stdout, "watchlist is empty")
		return nil
	}
	for _, kw := range keywords {
		fmt.Fprintln(os.Stdout, kw)
	}
	return nil
}

// ClearWatch removes every keyword for a subscriber along with the
// notification baselines, so re-adding a keyword starts fresh.
func (a *App) ClearWatch(ctx context.Context, subscriberID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage watchlist")
	}
	defer closeStore()

	cleared, err := store.ClearWatchlist(ctx, subscriberID)
	if err != nil {
		return err
	}
	if _, err := store.DeleteStatesForSubscriber(ctx, subscriberID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "cleared %d keyword(s)\n", cleared)
	return nil
}
