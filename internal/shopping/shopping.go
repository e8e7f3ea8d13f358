// Package shopping parses comparison search results out of saved or fetched
// aggregator markup. It is deliberately isolated from the price log: offers
// found here are shown to the user, never written to the index.
package shopping

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/enfmon/enfmon/internal/extract"
)

// priceLabel marks the current-price element on result cards.
const priceLabel = "Şu Anki Fiyat:"

// minSanePrice vetoes accessory noise: a 2 TL "offer" on a search for olive
// oil is a phone case or a sample sachet, not a price.
const minSanePrice = 5.0

// Offer is one parsed result card.
type Offer struct {
	Title  string  `json:"title"`
	Vendor string  `json:"vendor"`
	URL    string  `json:"url"`
	Price  float64 `json:"price"`
}

// ParseResults extracts offers from a results page, cheapest first. baseURL
// resolves relative links; pass "" when unknown.
func ParseResults(r io.Reader, baseURL string) ([]Offer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	var offers []Offer
	doc.Find("[aria-label]").Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("aria-label")
		if !strings.HasPrefix(strings.TrimSpace(label), priceLabel) {
			return
		}

		priceText := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(label), priceLabel))
		if priceText == "" {
			priceText = s.Text()
		}
		price, ok := extract.ParsePrice(priceText)
		if !ok || price < minSanePrice {
			return
		}

		card := s.Closest("article, li, div[data-testid], .product-card")
		if card.Length() == 0 {
			return
		}

		offer := Offer{
			Title:  cardTitle(card),
			Vendor: cleanVendor(card.Find(".vendor, .merchant, [data-testid=vendor]").First().Text()),
			URL:    cardURL(card, base),
			Price:  price,
		}
		if offer.Title == "" {
			return
		}
		offers = append(offers, offer)
	})

	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price < offers[j].Price })
	return offers, nil
}

func cardTitle(card *goquery.Selection) string {
	for _, sel := range []string{"[data-testid=product-title]", "h3", "h2", "a[title]"} {
		el := card.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if sel == "a[title]" {
			if t, ok := el.Attr("title"); ok && strings.TrimSpace(t) != "" {
				return strings.TrimSpace(t)
			}
			continue
		}
		if t := strings.TrimSpace(el.Text()); t != "" {
			return t
		}
	}
	return ""
}

func cardURL(card *goquery.Selection, base *url.URL) string {
	href, ok := card.Find("a[href]").First().Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if base == nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

// cleanVendor strips the boilerplate aggregators wrap around seller names.
func cleanVendor(text string) string {
	v := strings.TrimSpace(text)
	for _, noise := range []string{"Satıcı:", "satıcı:", "Mağaza:"} {
		v = strings.TrimSpace(strings.TrimPrefix(v, noise))
	}
	if idx := strings.IndexAny(v, "\n\t"); idx >= 0 {
		v = strings.TrimSpace(v[:idx])
	}
	return v
}

// Searcher runs live comparison searches against an aggregator.
type Searcher struct {
	HTTP    *http.Client
	BaseURL string
}

// NewSearcher creates a searcher against the given aggregator base URL,
// e.g. "https://www.cimri.com".
func NewSearcher(httpClient *http.Client, baseURL string) *Searcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Searcher{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Search fetches the results page for query and parses its offers.
func (s *Searcher) Search(query string) ([]Offer, error) {
	searchURL := fmt.Sprintf("%s/arama?q=%s", s.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequest("GET", searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "enfmon/1.0 (price monitor)")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	return ParseResults(io.LimitReader(resp.Body, 8<<20), s.BaseURL)
}
