package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const resultsPage = `<html><body>
<div id="productSearchResults">
  <div class="wake-product">
    <h4>Eagle Rare 10yr</h4>
    <small>PLU: 00063</small>
    <span class="size">750ml</span>
    <span class="price">$41.95</span>
    <div class="inventory-collapse">
      <ul>
        <li><span class="address">Raleigh Store #5<br/>123 Main St</span><span class="quantity">12 in stock</span></li>
        <li><span class="address">Cary Store #2</span><span class="quantity">3 in stock</span></li>
        <li><span class="address">Apex Store #9</span><span class="quantity">Out of stock</span></li>
      </ul>
    </div>
  </div>
  <div class="wake-product">
    <h4>Weller Special Reserve</h4>
    <span class="size">750ml</span>
    <span class="price">$24.99</span>
    <p class="out-of-stock">Currently out of stock</p>
  </div>
</div>
</body></html>`

const emptyPage = `<html><body>
<div id="productSearchResults">
  <p>Sorry, your search did not return any results.</p>
</div>
</body></html>`

func newTestClient(url string) *Client {
	return NewClient(ClientOptions{
		SearchURL:  url,
		UserAgent:  "test",
		Timeout:    time.Second,
		MaxResults: 10,
	}, zerolog.Nop())
}

func TestFetchParsesProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("productSearch"); got != "eagle rare" {
			t.Fatalf("unexpected search term %q", got)
		}
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL).Fetch(context.Background(), "eagle rare")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 products, got %d", len(items))
	}

	first := items[0]
	if first.Key != "plu:00063" {
		t.Fatalf("expected PLU-derived key, got %q", first.Key)
	}
	if first.Name != "Eagle Rare 10yr" || first.Size != "750ml" {
		t.Fatalf("unexpected name/size: %q %q", first.Name, first.Size)
	}
	if first.TotalQuantity != 15 {
		t.Fatalf("total quantity should sum per-store counts, got %d", first.TotalQuantity)
	}
	if len(first.Stores) != 3 {
		t.Fatalf("expected 3 store lines, got %d", len(first.Stores))
	}
	if first.Stores[0].Quantity != 12 || first.Stores[1].Quantity != 3 || first.Stores[2].Quantity != 0 {
		t.Fatalf("unexpected store quantities: %+v", first.Stores)
	}
	if got := first.LowestPrice().StringFixed(2); got != "41.95" {
		t.Fatalf("unexpected lowest price %s", got)
	}
	if stores := first.InStockStores(); len(stores) != 2 {
		t.Fatalf("expected 2 in-stock stores, got %v", stores)
	}

	second := items[1]
	if second.Key != "weller-special-reserve-750ml" {
		t.Fatalf("expected slug key for PLU-less product, got %q", second.Key)
	}
	if second.TotalQuantity != 0 || len(second.Stores) != 0 {
		t.Fatalf("out-of-stock product should carry no stores: %+v", second)
	}
}

func TestFetchNoResultsIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(emptyPage))
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL).Fetch(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("no-results page must not be an error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %d items", len(items))
	}
}

func TestFetchHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Fetch(context.Background(), "rye"); err == nil {
		t.Fatal("HTTP 502 must surface as an error")
	}
}

func TestFetchMissingContainerIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>maintenance</p></body></html>"))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Fetch(context.Background(), "rye"); err == nil {
		t.Fatal("a response without the results container must be an error, not an empty success")
	}
}

func TestFetchRespectsMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{SearchURL: srv.URL, Timeout: time.Second, MaxResults: 1}, zerolog.Nop())
	items, err := c.Fetch(context.Background(), "eagle")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected result cap of 1, got %d", len(items))
	}
}

func TestProductKey(t *testing.T) {
	if got := ProductKey("123", "ignored", "750ml"); got != "plu:123" {
		t.Fatalf("PLU should win: %q", got)
	}
	if got := ProductKey("", "Old Forester 1920", "750ml"); got != "old-forester-1920-750ml" {
		t.Fatalf("unexpected slug: %q", got)
	}
}
