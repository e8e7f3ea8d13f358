// Package archive ingests bundles of saved product pages. A bundle is a ZIP
// file of HTML documents captured by the page collector; each document is
// matched back to a basket item through its canonical URL and run through
// the price extractor. Manual price overrides take precedence over anything
// found in the bundles.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/enfmon/enfmon/internal/basket"
	"github.com/enfmon/enfmon/internal/database"
	"github.com/enfmon/enfmon/internal/extract"
)

// ErrNoData is returned when a run produces no observations at all, so the
// caller can distinguish "nothing usable" from "wrote zero rows".
var ErrNoData = errors.New("archive: no observations extracted")

// Page is one HTML document pulled out of a bundle.
type Page struct {
	Name string
	Data []byte
}

// OpenBundle reads the HTML entries of a ZIP bundle. Non-HTML entries and
// directory placeholders are ignored.
func OpenBundle(path string) ([]Page, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle %s: %w", path, err)
	}
	defer r.Close()

	var pages []Page
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isHTMLName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in %s: %w", f.Name, path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s in %s: %w", f.Name, path, err)
		}
		pages = append(pages, Page{Name: f.Name, Data: data})
	}
	return pages, nil
}

func isHTMLName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}

// Processor turns bundle pages into price observations for one calendar day.
type Processor struct {
	Items   []basket.Item
	Logger  *log.Logger
	Metrics *Metrics
}

// Process runs one ingest over the given bundles: manual overrides first,
// then every page of every bundle. Each basket item contributes at most one
// observation per run; once a code has a price, later pages for it are
// ignored. Pages that fail to parse or yield no price are logged and
// skipped, never fatal.
func (p *Processor) Process(bundles []string, date, clock string) ([]database.Observation, error) {
	byURL := basket.ByURL(p.Items)
	seen := make(map[string]bool, len(p.Items))
	var out []database.Observation

	for _, it := range p.Items {
		if it.ManualPrice <= 0 {
			continue
		}
		code := basket.NormalizeCode(it.Code)
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, database.Observation{
			Date:   date,
			Time:   clock,
			Code:   code,
			Name:   it.Name,
			Price:  it.ManualPrice,
			Source: "Manuel",
			URL:    it.URL,
		})
		p.Metrics.IncManual()
	}

	for _, path := range bundles {
		pages, err := OpenBundle(path)
		if err != nil {
			p.logf("WARN: skipping bundle: %v", err)
			continue
		}
		for _, page := range pages {
			p.processPage(page, path, date, clock, byURL, seen, &out)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (p *Processor) processPage(page Page, bundle, date, clock string, byURL map[string]basket.Item, seen map[string]bool, out *[]database.Observation) {
	p.Metrics.IncPage()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Data))
	if err != nil {
		p.logf("WARN: %s in %s: unparseable document: %v", page.Name, bundle, err)
		p.Metrics.IncSkipped("parse")
		return
	}

	pageURL := extract.CanonicalURL(doc)
	if pageURL == "" {
		p.logf("WARN: %s in %s: no canonical URL, cannot match to basket", page.Name, bundle)
		p.Metrics.IncSkipped("no_canonical")
		return
	}

	it, ok := matchItem(byURL, pageURL)
	if !ok {
		p.logf("WARN: %s in %s: %s not in basket", page.Name, bundle, pageURL)
		p.Metrics.IncSkipped("not_in_basket")
		return
	}

	code := basket.NormalizeCode(it.Code)
	if seen[code] {
		return
	}

	price, source := extract.Price(doc, pageURL)
	if price <= 0 {
		p.logf("WARN: %s in %s: no price found for %s (%s)", page.Name, bundle, it.Name, pageURL)
		p.Metrics.IncSkipped("no_price")
		return
	}

	seen[code] = true
	*out = append(*out, database.Observation{
		Date:   date,
		Time:   clock,
		Code:   code,
		Name:   it.Name,
		Price:  price,
		Source: source,
		URL:    pageURL,
	})
	p.Metrics.IncObservation()
}

func (p *Processor) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

// matchItem looks up a page URL in the basket, tolerating the usual drift
// between the stored URL and the page's canonical one.
func matchItem(byURL map[string]basket.Item, pageURL string) (basket.Item, bool) {
	if it, ok := byURL[pageURL]; ok {
		return it, true
	}
	want := NormalizeURL(pageURL)
	for u, it := range byURL {
		if NormalizeURL(u) == want {
			return it, true
		}
	}
	return basket.Item{}, false
}

// NormalizeURL reduces a URL to scheme-insensitive host+path form with no
// query, fragment or trailing slash, so a tracked URL and the canonical URL
// of its saved page compare equal.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	return host + strings.TrimRight(u.Path, "/")
}
