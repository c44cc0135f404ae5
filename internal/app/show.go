package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recently dispatched notifications.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show notifications")
	}
	defer closeStore()

	records, err := store.ListRecentNotifications(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no notifications found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSubscriber\tKeyword\tProduct\tKind\tDelivered\tDetail")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%t\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.SubscriberID,
			rec.Keyword,
			rec.ProductName,
			rec.Kind,
			rec.Delivered,
			sanitizeInline(rec.Detail),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
