// Package basket models the fixed set of tracked goods and loads it from
// spreadsheet-style CSV exports whose column names drift between revisions.
package basket

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Item is one tracked good or service in the basket.
type Item struct {
	Code        string  // normalized 7-digit code, unique key
	Name        string  // display label
	Category    string  // human category name from the leading 2 code digits
	Weight      float64 // basket weight, 1 when the sheet has none
	URL         string  // canonical source URL, used as merge key
	ManualPrice float64 // operator override, 0 when unset
}

// groupNames maps the leading 2 digits of an item code to its COICOP-style
// consumption group.
var groupNames = map[string]string{
	"01": "Gıda",
	"02": "Alkol",
	"03": "Giyim",
	"04": "Konut",
	"05": "Ev",
	"06": "Sağlık",
	"07": "Ulaşım",
	"08": "İletişim",
	"09": "Eğlence",
	"10": "Eğitim",
	"11": "Lokanta",
	"12": "Çeşitli",
}

// NormalizeCode brings an item code to canonical form: trailing ".0"
// (a spreadsheet float artifact) stripped, whitespace trimmed, zero-padded
// to 7 digits. Two representations of the same code always compare equal
// after normalization.
func NormalizeCode(code string) string {
	c := strings.TrimSpace(code)
	c = strings.TrimSuffix(c, ".0")
	for len(c) < 7 {
		c = "0" + c
	}
	return c
}

// CategoryFor returns the consumption group for a normalized code.
// Unmapped prefixes land in the "Diğer" bucket.
func CategoryFor(code string) string {
	if len(code) >= 2 {
		if name, ok := groupNames[code[:2]]; ok {
			return name
		}
	}
	return "Diğer"
}

// Categories returns the known group prefix → name table.
func Categories() map[string]string {
	out := make(map[string]string, len(groupNames))
	for k, v := range groupNames {
		out[k] = v
	}
	return out
}

// columns holds the sniffed header positions. -1 means absent.
type columns struct {
	code, url, name, weight, manual int
}

// sniffColumns locates the needed columns by case-insensitive matching.
// The sheet is maintained by hand and headers drift ("Agirlik_2024" vs
// "Agirlik_2025"), so everything except code and URL is substring-matched.
func sniffColumns(header []string) (columns, error) {
	cols := columns{code: -1, url: -1, name: -1, weight: -1, manual: -1}
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		folded := strings.NewReplacer("ğ", "g", "ı", "i").Replace(lower)
		switch {
		case lower == "kod" && cols.code < 0:
			cols.code = i
		case lower == "url" && cols.url < 0:
			cols.url = i
		case strings.Contains(lower, "manuel") && cols.manual < 0:
			cols.manual = i
		case (strings.Contains(folded, "agirlik") || strings.Contains(folded, "weight")) && cols.weight < 0:
			cols.weight = i
		case strings.Contains(lower, "ad") && cols.name < 0:
			cols.name = i
		}
	}
	if cols.code < 0 || cols.url < 0 {
		return cols, fmt.Errorf("basket sheet is missing the Kod or URL column")
	}
	return cols, nil
}

// Load reads basket items from a CSV export of the configuration sheet.
// Rows without a code or URL are skipped; weights default to 1.
func Load(r io.Reader) ([]Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading basket header: %w", err)
	}
	cols, err := sniffColumns(header)
	if err != nil {
		return nil, err
	}

	var items []Item
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading basket row: %w", err)
		}

		code := field(record, cols.code)
		url := field(record, cols.url)
		if code == "" || url == "" {
			continue
		}

		item := Item{
			Code:   NormalizeCode(code),
			Name:   field(record, cols.name),
			URL:    url,
			Weight: 1,
		}
		item.Category = CategoryFor(item.Code)

		if w, ok := parseNumber(field(record, cols.weight)); ok && w >= 0 {
			item.Weight = w
		}
		if p, ok := parseNumber(field(record, cols.manual)); ok && p > 0 {
			item.ManualPrice = p
		}
		items = append(items, item)
	}
	return items, nil
}

// Write exports items with canonical headers, round-tripping with Load.
func Write(w io.Writer, items []Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Kod", "Madde adı", "Grup", "Agirlik", "URL", "Manuel_Fiyat"}); err != nil {
		return fmt.Errorf("writing basket header: %w", err)
	}
	for _, it := range items {
		manual := ""
		if it.ManualPrice > 0 {
			manual = strconv.FormatFloat(it.ManualPrice, 'f', 2, 64)
		}
		record := []string{
			it.Code,
			it.Name,
			it.Category,
			strconv.FormatFloat(it.Weight, 'f', -1, 64),
			it.URL,
			manual,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing basket row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ByURL builds a trimmed-URL lookup for matching scraped documents.
func ByURL(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[strings.TrimSpace(it.URL)] = it
	}
	return m
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseNumber parses a spreadsheet cell that may use a comma decimal
// separator.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
