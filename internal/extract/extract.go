// Package extract pulls product prices out of retailer HTML documents.
//
// Extraction is site-dispatched: the source URL's domain selects one of a
// fixed, ordered list of strategies. Retailer markup is noisy and changes
// without notice, so every strategy is best-effort and a failure in one
// simply falls through to the next.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// priceRe matches a Turkish-formatted price followed by a currency marker,
// e.g. "1.234,56 TL" or "99,90₺".
var priceRe = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?)\s*(?:TL|₺)`)

// Strategy attempts to locate a price in a product document.
// Each implementation is independently unit-testable.
type Strategy interface {
	// Name identifies the strategy for logging.
	Name() string
	// Matches reports whether this strategy applies to the given domain.
	Matches(domain string) bool
	// Extract returns the price and a provenance tag, or (0, "") when no
	// usable price was found.
	Extract(doc *goquery.Document) (float64, string)
}

// Strategies is the fixed priority order the dispatcher tries.
var Strategies = []Strategy{
	migrosStrategy{},
	cimriStrategy{},
	genericStrategy{},
	regexStrategy{},
}

// Price runs the strategy chain for the document's source URL and returns
// the first hit. Total failure yields (0, ""); it never panics.
func Price(doc *goquery.Document, sourceURL string) (float64, string) {
	domain := strings.ToLower(sourceURL)
	for _, s := range Strategies {
		if !s.Matches(domain) {
			continue
		}
		if price, tag := tryExtract(s, doc); price > 0 {
			return price, tag
		}
	}
	return 0, ""
}

// tryExtract shields the dispatcher from a panicking strategy. Broken markup
// must never abort a batch run.
func tryExtract(s Strategy, doc *goquery.Document) (price float64, tag string) {
	defer func() {
		if r := recover(); r != nil {
			price, tag = 0, ""
		}
	}()
	return s.Extract(doc)
}

// ParsePrice converts a scraped price label to a number. Turkish locale
// convention: when both "." and "," are present, "." is the thousands
// separator and "," the decimal separator; otherwise "," is decimal.
// Unparseable input returns ok=false, never zero.
func ParsePrice(text string) (float64, bool) {
	t := strings.ReplaceAll(text, "TL", "")
	t = strings.ReplaceAll(t, "₺", "")
	t = strings.TrimSpace(t)
	if t == "" {
		return 0, false
	}

	if strings.Contains(t, ",") && strings.Contains(t, ".") {
		t = strings.ReplaceAll(t, ".", "")
		t = strings.ReplaceAll(t, ",", ".")
	} else {
		t = strings.ReplaceAll(t, ",", ".")
	}

	var b strings.Builder
	for _, r := range t {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CanonicalURL extracts the document's own idea of its URL: a
// link[rel=canonical] element, falling back to the og:url meta tag.
func CanonicalURL(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if u := strings.TrimSpace(href); u != "" {
			return u
		}
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// migrosStrategy handles the supermarket product layout. The page carries
// carousels and similar-product lists full of unrelated prices, so those
// sections are stripped before the selector chain runs.
type migrosStrategy struct{}

func (migrosStrategy) Name() string { return "migros" }

func (migrosStrategy) Matches(domain string) bool { return strings.Contains(domain, "migros") }

var migrosNoise = []string{
	"sm-list-page-item",
	".horizontal-list-page-items-container",
	"app-product-carousel",
	".similar-products",
	"div.badges-wrapper",
}

func (migrosStrategy) Extract(doc *goquery.Document) (float64, string) {
	for _, sel := range migrosNoise {
		doc.Find(sel).Remove()
	}

	// Normal, single-price and promotional locations inside the main
	// name/price block.
	wrapper := doc.Find(".name-price-wrapper").First()
	if wrapper.Length() > 0 {
		chain := []struct {
			sel string
			tag string
		}{
			{".price.subtitle-1", "Migros(N)"},
			{".single-price-amount", "Migros(S)"},
			{"#sale-price, .sale-price", "Migros(I)"},
		}
		for _, c := range chain {
			el := wrapper.Find(c.sel).First()
			if el.Length() == 0 {
				continue
			}
			if v, ok := ParsePrice(el.Text()); ok && v > 0 {
				return v, c.tag
			}
		}
	}

	// Document-wide fallbacks for layouts without the wrapper block.
	if el := doc.Find("fe-product-price .subtitle-1, .single-price-amount").First(); el.Length() > 0 {
		if v, ok := ParsePrice(el.Text()); ok && v > 0 {
			return v, "Migros(G)"
		}
	}
	if el := doc.Find("#sale-price").First(); el.Length() > 0 {
		if v, ok := ParsePrice(el.Text()); ok && v > 0 {
			return v, "Migros(GI)"
		}
	}
	return 0, ""
}

// cimriStrategy handles the price-comparison aggregator. A listing page
// shows many offers, some sponsored or irrelevant, so all candidates per
// selector are collected and averaged after trimming the extremes.
type cimriStrategy struct{}

func (cimriStrategy) Name() string { return "cimri" }

func (cimriStrategy) Matches(domain string) bool { return strings.Contains(domain, "cimri") }

var cimriSelectors = []string{"div.rTdMX", ".offer-price", "div.sS0lR", ".min-price-val"}

func (cimriStrategy) Extract(doc *goquery.Document) (float64, string) {
	for _, sel := range cimriSelectors {
		var vals []float64
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
			if v, ok := ParsePrice(el.Text()); ok && v > 0 {
				vals = append(vals, v)
			}
		})
		if len(vals) == 0 {
			continue
		}
		// With more than 4 offers, drop the single lowest and highest to
		// reduce skew from sponsored and mismatched listings.
		if len(vals) > 4 {
			sort.Float64s(vals)
			vals = vals[1 : len(vals)-1]
		}
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals)), fmt.Sprintf("Cimri(%d)", len(vals))
	}

	// Raw-text fallback: average the cheaper half of every price-looking
	// value near the top of the page.
	matches := priceRe.FindAllStringSubmatch(textPrefix(doc, 10000), -1)
	var vals []float64
	for _, m := range matches {
		if v, ok := ParsePrice(m[1]); ok && v > 0 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, ""
	}
	sort.Float64s(vals)
	half := len(vals) / 2
	if half < 1 {
		half = 1
	}
	sum := 0.0
	for _, v := range vals[:half] {
		sum += v
	}
	return sum / float64(half), "Cimri(Reg)"
}

// genericStrategy covers unknown retailer layouts with a list of common
// product-price selectors.
type genericStrategy struct{}

func (genericStrategy) Name() string { return "generic" }

func (genericStrategy) Matches(domain string) bool {
	return !strings.Contains(domain, "migros")
}

var genericSelectors = []string{".product-price", ".price", ".current-price", `span[itemprop="price"]`}

func (genericStrategy) Extract(doc *goquery.Document) (float64, string) {
	for _, sel := range genericSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if v, ok := ParsePrice(el.Text()); ok && v > 0 {
			return v, "Genel(CSS)"
		}
	}
	return 0, ""
}

// regexStrategy is the last resort: scan the start of the rendered text for
// a currency-suffixed number.
type regexStrategy struct{}

func (regexStrategy) Name() string { return "regex" }

func (regexStrategy) Matches(domain string) bool {
	return !strings.Contains(domain, "migros") && !strings.Contains(domain, "cimri")
}

func (regexStrategy) Extract(doc *goquery.Document) (float64, string) {
	m := priceRe.FindStringSubmatch(textPrefix(doc, 5000))
	if m == nil {
		return 0, ""
	}
	if v, ok := ParsePrice(m[1]); ok && v > 0 {
		return v, "Regex"
	}
	return 0, ""
}

// textPrefix returns up to n runes of the document's visible text.
func textPrefix(doc *goquery.Document, n int) string {
	text := doc.Text()
	runes := []rune(text)
	if len(runes) > n {
		return string(runes[:n])
	}
	return text
}
