// Package rates fetches the daily reference exchange rates from the TCMB
// XML feed and the gram gold price from a market page. Results are cached;
// the dashboard never blocks on these and renders zeros when every source
// is down.
package rates

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/enfmon/enfmon/internal/cache"
	"github.com/enfmon/enfmon/internal/extract"
)

const (
	DefaultTCMBURL = "https://www.tcmb.gov.tr/kurlar/today.xml"
	DefaultGoldURL = "https://altin.doviz.com/gram-altin"

	// gramsPerOunce converts a per-ounce quote to grams.
	gramsPerOunce = 31.1035

	// fallbackOunceUSD is a coarse dollar price of gold used only when the
	// gold page is unreachable but the USD rate is known.
	fallbackOunceUSD = 2400.0

	cacheTTL = 30 * time.Minute
)

// Rates is one snapshot of the tracked market rates in TRY.
type Rates struct {
	USD       float64   `json:"usd"`
	EUR       float64   `json:"eur"`
	GoldGram  float64   `json:"gold_gram"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Client fetches and caches rate snapshots.
type Client struct {
	HTTP    *http.Client
	TCMBURL string
	GoldURL string
	Logger  *log.Logger

	cache *cache.Cache[Rates]
}

// NewClient creates a client with the default endpoints and a 30 minute
// cache.
func NewClient(httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		HTTP:    httpClient,
		TCMBURL: DefaultTCMBURL,
		GoldURL: DefaultGoldURL,
		Logger:  logger,
		cache:   cache.New[Rates](4, cacheTTL),
	}
}

// Fetch returns the current snapshot, from cache when fresh. Individual
// source failures degrade to zero fields; Fetch itself never fails.
func (c *Client) Fetch() Rates {
	if r, ok := c.cache.Get("rates", "latest"); ok {
		return r
	}

	r := Rates{FetchedAt: time.Now()}

	usd, eur, err := c.fetchTCMB()
	if err != nil {
		c.logf("WARN: TCMB rates unavailable: %v", err)
	} else {
		r.USD, r.EUR = usd, eur
	}

	gold, err := c.fetchGold()
	if err != nil {
		c.logf("WARN: gold price unavailable: %v", err)
		if r.USD > 0 {
			gold = r.USD * fallbackOunceUSD / gramsPerOunce
		}
	}
	r.GoldGram = gold

	c.cache.Set("rates", "latest", r)
	return r
}

// Invalidate drops the cached snapshot so the next Fetch hits the network.
func (c *Client) Invalidate() {
	c.cache.Invalidate("rates")
}

type tcmbDocument struct {
	Currencies []struct {
		Code         string `xml:"CurrencyCode,attr"`
		ForexSelling string `xml:"ForexSelling"`
	} `xml:"Currency"`
}

func (c *Client) fetchTCMB() (usd, eur float64, err error) {
	body, err := c.get(c.TCMBURL)
	if err != nil {
		return 0, 0, err
	}

	var doc tcmbDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return 0, 0, fmt.Errorf("failed to parse TCMB feed: %w", err)
	}

	for _, cur := range doc.Currencies {
		v, ok := extract.ParsePrice(cur.ForexSelling)
		if !ok {
			continue
		}
		switch cur.Code {
		case "USD":
			usd = v
		case "EUR":
			eur = v
		}
	}
	if usd == 0 && eur == 0 {
		return 0, 0, fmt.Errorf("TCMB feed carried no USD or EUR rate")
	}
	return usd, eur, nil
}

func (c *Client) fetchGold() (float64, error) {
	body, err := c.get(c.GoldURL)
	if err != nil {
		return 0, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to parse gold page: %w", err)
	}
	text := doc.Find("span.value").First().Text()
	v, ok := extract.ParsePrice(text)
	if !ok || v <= 0 {
		return 0, fmt.Errorf("no gold price on page")
	}
	return v, nil
}

func (c *Client) get(url string) ([]byte, error) {
	resp, err := c.HTTP.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func (c *Client) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
