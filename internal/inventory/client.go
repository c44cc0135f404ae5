package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultSearchURL = "https://wakeabc.com/search-results"

// ClientOptions parameterise the catalog search client.
type ClientOptions struct {
	SearchURL  string
	UserAgent  string
	Timeout    time.Duration
	MaxResults int
}

// Client fetches inventory observations from the ABC catalog search page.
type Client struct {
	opts      ClientOptions
	logger    zerolog.Logger
	client    *http.Client
	searchURL string
}

// NewClient constructs a catalog search client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	searchURL := strings.TrimRight(opts.SearchURL, "/")
	if searchURL == "" {
		searchURL = defaultSearchURL
	}

	return &Client{
		opts:      opts,
		logger:    logger.With().Str("component", "inventory_client").Logger(),
		client:    &http.Client{Timeout: timeout},
		searchURL: searchURL,
	}
}

// Fetch posts the search form and parses the result page into observations.
func (c *Client) Fetch(ctx context.Context, keyword string) ([]Observation, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("empty search keyword")
	}

	form := url.Values{"productSearch": {keyword}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "abcwatcher/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	items, err := c.parseResults(doc, keyword)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("keyword", keyword).Int("results", len(items)).Msg("catalog search complete")
	return items, nil
}

func (c *Client) parseResults(doc *goquery.Document, keyword string) ([]Observation, error) {
	results := doc.Find("#productSearchResults")
	if results.Length() == 0 {
		return nil, fmt.Errorf("search results container missing from response")
	}

	if strings.Contains(results.Text(), "Sorry, your search did not return any results") {
		return nil, nil
	}

	fetchedAt := time.Now().UTC()
	max := c.opts.MaxResults
	if max <= 0 {
		max = 10
	}

	items := make([]Observation, 0, max)
	results.Find("div.wake-product").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(items) >= max {
			return false
		}
		obs, ok := parseProduct(sel, fetchedAt)
		if !ok {
			c.logger.Warn().Str("keyword", keyword).Msg("skipping unparseable product entry")
			return true
		}
		items = append(items, obs)
		return true
	})

	return items, nil
}

func parseProduct(sel *goquery.Selection, fetchedAt time.Time) (Observation, bool) {
	name := strings.TrimSpace(sel.Find("h4").First().Text())
	if name == "" {
		return Observation{}, false
	}

	plu := ""
	if small := strings.TrimSpace(sel.Find("small").First().Text()); strings.Contains(small, "PLU:") {
		plu = strings.TrimSpace(strings.Replace(small, "PLU:", "", 1))
	}

	size := strings.TrimSpace(sel.Find("span.size").First().Text())
	price := parsePrice(sel.Find("span.price").First().Text())

	obs := Observation{
		Key:       ProductKey(plu, name, size),
		Name:      name,
		Size:      size,
		FetchedAt: fetchedAt,
	}

	// An explicit out-of-stock marker short-circuits the store list.
	if sel.Find("p.out-of-stock").Length() > 0 {
		return obs, true
	}

	sel.Find("div.inventory-collapse li").Each(func(_ int, li *goquery.Selection) {
		address := normalizeSpace(li.Find("span.address").First().Text())
		quantity := parseQuantity(li.Find("span.quantity").First().Text())
		if address == "" {
			return
		}
		obs.Stores = append(obs.Stores, StoreStock{
			StoreID:  address,
			Price:    price,
			Quantity: quantity,
		})
		obs.TotalQuantity += quantity
	})

	return obs, true
}

var (
	priceDigits    = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	quantityDigits = regexp.MustCompile(`[0-9]+`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

func parsePrice(raw string) decimal.Decimal {
	match := priceDigits.FindString(strings.ReplaceAll(raw, ",", ""))
	if match == "" {
		return decimal.Decimal{}
	}
	price, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Decimal{}
	}
	return price
}

// parseQuantity reads store lines such as "12 in stock". Anything outside
// that shape counts as zero.
func parseQuantity(raw string) int {
	lowered := strings.ToLower(raw)
	if !strings.Contains(lowered, "in stock") {
		return 0
	}
	match := quantityDigits.FindString(lowered)
	if match == "" {
		return 0
	}
	n := 0
	for _, r := range match {
		n = n*10 + int(r-'0')
	}
	return n
}

func normalizeSpace(raw string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(raw, " "))
}

var _ Source = (*Client)(nil)
