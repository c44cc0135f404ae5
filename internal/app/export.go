package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"abc-inventory-alerts/internal/storage"
)

// Export renders one product's inventory history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.ProductKey == "" {
		return errors.New("--product is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Monitor.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snapshots, err := store.ListSnapshotsBetween(ctx, opts.ProductKey, from, to)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Str("product", opts.ProductKey).Msg("no history found for export window")
		return nil
	}

	downsampled := downsampleSnapshots(snapshots, opts.MaxPoints)
	a.Logger.Info().Int("total", len(snapshots)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSnapshots(snapshots []storage.ProductSnapshot, max int) []storage.ProductSnapshot {
	if max <= 0 || len(snapshots) <= max {
		return snapshots
	}

	result := make([]storage.ProductSnapshot, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snapshots) {
			idx = len(snapshots) - 1
		}
		result = append(result, snapshots[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snapshots []storage.ProductSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"fetched_at", "product_key", "product_name", "total_quantity", "lowest_price", "store_count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snapshots {
		record := []string{
			snap.FetchedAt.Format(time.RFC3339),
			snap.ProductKey,
			snap.ProductName,
			strconv.Itoa(snap.TotalQuantity),
			snap.LowestPrice.String(),
			strconv.Itoa(snap.StoreCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSnapshotsPNG(path string, snapshots []storage.ProductSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(snapshots))
	quantity := make([]float64, len(snapshots))
	price := make([]float64, len(snapshots))

	for i, snap := range snapshots {
		x[i] = snap.FetchedAt
		quantity[i] = float64(snap.TotalQuantity)
		price[i] = snap.LowestPrice.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  snapshots[0].ProductName,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Bottles in stock",
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Lowest price ($)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Quantity",
				XValues: x,
				YValues: quantity,
			},
			chart.TimeSeries{
				Name:    "Lowest price",
				XValues: x,
				YValues: price,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
