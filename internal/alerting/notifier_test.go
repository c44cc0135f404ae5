package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"abc-inventory-alerts/internal/diff"
)

func testEvent() *diff.Event {
	return &diff.Event{
		SubscriberID: 42,
		Keyword:      "eagle rare",
		ProductKey:   "plu:00063",
		ProductName:  "Eagle Rare 10yr",
		ProductSize:  "750ml",
		Kind:         diff.KindPriceDrop,
		OldPrice:     decimal.NewFromFloat(41.95),
		NewPrice:     decimal.NewFromFloat(39.95),
		NewTotal:     12,
		NewStores:    []string{"Raleigh Store #5"},
	}
}

func TestTelegramSendSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Send(context.Background(), 42, testEvent()); err != nil {
		t.Fatalf("send should succeed: %v", err)
	}

	if received["chat_id"] != "42" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if received["parse_mode"] != "MarkdownV2" {
		t.Fatalf("expected MarkdownV2 parse mode, got %q", received["parse_mode"])
	}
	text := received["text"]
	if !strings.Contains(text, "Price Drop") {
		t.Fatalf("text should carry the price-drop header: %q", text)
	}
	if !strings.Contains(text, "Eagle Rare 10yr") {
		t.Fatalf("text should name the product: %q", text)
	}
	if !strings.Contains(text, "eagle rare") {
		t.Fatalf("text should name the matched keyword: %q", text)
	}
}

func TestTelegramSendNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Send(context.Background(), 42, testEvent()); err == nil {
		t.Fatal("ok=false must surface as an error")
	}
}

func TestTelegramSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden) // e.g. subscriber blocked the bot
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Send(context.Background(), 42, testEvent()); err == nil {
		t.Fatal("HTTP 403 must surface as an error")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := EscapeMarkdown("Maker's Mark 46 (cask) - 750ml!")
	want := "Maker's Mark 46 \\(cask\\) \\- 750ml\\!"
	if got != want {
		t.Fatalf("escape mismatch:\n got %q\nwant %q", got, want)
	}
}
