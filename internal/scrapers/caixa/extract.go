package caixa

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"caixa-imoveis/internal/components/telemetry"
	"caixa-imoveis/lib/htmlutil"
	"caixa-imoveis/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const report_extractor_extract = "extractor.extract"

const (
	tokenFieldPrefix   = "hdnImov"
	totalPagesField    = "hdnQtdPag"
	totalRecordsField  = "hdnQtdRegistros"
	minimumTitleLength = 10
)

// RawEntry is one listing as found in the markup, before normalization.
type RawEntry struct {
	Code       string
	ItemNumber string
	Title      string
	// Details is the item's text, one block per line.
	Details string
	Price   string
}

// Fragment is everything extracted from one page of results.
type Fragment struct {
	Entries []RawEntry
	// Tokens maps a 1-based page index to its opaque pagination token.
	Tokens       map[int]string
	TotalPages   int
	TotalRecords int
	// HasTotals is false when the page carried no total fields.
	HasTotals bool
	// Strategy names the listing strategy that matched, empty if none did.
	Strategy string
}

// ListingStrategy extracts entries from one page layout, it returns nil when
// the layout it knows is absent.
type ListingStrategy struct {
	Name    string
	Extract func(doc *goquery.Document) []RawEntry
}

// ListingStrategies are tried in order, the first one yielding entries wins.
var ListingStrategies = []ListingStrategy{
	{Name: "results-container", Extract: itemsStrategy("#listaimoveispaginacao li.group-block-item")},
	{Name: "group-block-item", Extract: itemsStrategy("li.group-block-item")},
	{Name: "dados-imovel", Extract: itemsStrategy("div.dadosimovel")},
	{Name: "table-rows", Extract: tableRowsStrategy},
}

type Extractor struct {
	tel        telemetry.API
	strategies []ListingStrategy
}

func NewExtractor(tel telemetry.API) *Extractor {
	return &Extractor{
		tel:        telemetry.NewScopedAPI("caixa_scraper", tel),
		strategies: ListingStrategies,
	}
}

// Extract parses one fragment. A page matching no strategy is a valid empty
// page, the only error is markup that cannot be read at all.
func (e *Extractor) Extract(fragment []byte) (Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fragment))
	if err != nil {
		return Fragment{}, fmt.Errorf("parse fragment: %w", err)
	}

	out := Fragment{Tokens: extractTokens(doc)}
	out.TotalPages, out.TotalRecords, out.HasTotals = extractTotals(doc)

	for _, strategy := range e.strategies {
		entries := strategy.Extract(doc)
		if len(entries) > 0 {
			out.Entries = entries
			out.Strategy = strategy.Name
			break
		}
		e.tel.ReportWarning(report_extractor_extract, fmt.Errorf("%w: strategy %s matched nothing", ErrParseDegraded, strategy.Name))
	}
	if out.Strategy == "" {
		e.tel.ReportDebug("no strategy matched, page treated as empty")
	}
	return out, nil
}

func extractTokens(doc *goquery.Document) map[int]string {
	tokens := map[int]string{}
	doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if !strings.HasPrefix(name, tokenFieldPrefix) {
			name = input.AttrOr("id", "")
		}
		if !strings.HasPrefix(name, tokenFieldPrefix) {
			return
		}
		index, err := strconv.Atoi(strings.TrimPrefix(name, tokenFieldPrefix))
		if err != nil || index <= 0 {
			return
		}
		value := strings.TrimSpace(input.AttrOr("value", ""))
		if value == "" {
			return
		}
		if _, exists := tokens[index]; !exists {
			tokens[index] = value
		}
	})
	return tokens
}

func hiddenInt(doc *goquery.Document, field string) (int, bool) {
	sel := doc.Find(fmt.Sprintf("input#%s, input[name=%s]", field, field)).First()
	if sel.Length() == 0 {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(sel.AttrOr("value", "")))
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

func extractTotals(doc *goquery.Document) (pages, records int, ok bool) {
	pages, okPages := hiddenInt(doc, totalPagesField)
	records, okRecords := hiddenInt(doc, totalRecordsField)
	return pages, records, okPages || okRecords
}

// SortedPages returns the keys of a token map in ascending order.
func SortedPages(tokens map[int]string) []int {
	pages := make([]int, 0, len(tokens))
	for page := range tokens {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

var (
	itemNumberRegex = regexp.MustCompile(`(?i)n[úu]mero do item:\s*(\d+)`)
	codeRegex       = regexp.MustCompile(`(?i)n[úu]mero do im[óo]vel:\s*([0-9][0-9\-]*)`)
	priceRegex      = regexp.MustCompile(`R\$\s*[\d.]+(?:,\d{2})?`)
)

var titleNoisePrefixes = []string{"TEMPO RESTANTE", "NUMERO DO ITEM", "DESPESAS"}

func isNoiseTitle(text string) bool {
	normalized := textutil.NormalizeName(text)
	for _, prefix := range titleNoisePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

func pickTitle(item *goquery.Selection) string {
	var first string
	var title string
	item.Find("strong").EachWithBreak(func(i int, strong *goquery.Selection) bool {
		text := htmlutil.SelectionText(strong)
		if i == 0 {
			first = text
		}
		if text != "" && !isNoiseTitle(text) && len([]rune(text)) > minimumTitleLength {
			title = text
			return false
		}
		return true
	})
	if title != "" {
		return title
	}
	item.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := htmlutil.SelectionText(a)
		if len([]rune(text)) > minimumTitleLength && !isNoiseTitle(text) {
			title = text
			return false
		}
		return true
	})
	if title != "" {
		return title
	}
	if isNoiseTitle(first) {
		return ""
	}
	return first
}

func entryFromItem(item *goquery.Selection) (RawEntry, bool) {
	if len(item.Nodes) == 0 {
		return RawEntry{}, false
	}
	lines := htmlutil.GetTextLines(item.Nodes[0])
	text := strings.Join(lines, "\n")

	entry := RawEntry{Details: text}

	title := pickTitle(item)
	if before, after, found := strings.Cut(title, "|"); found {
		entry.Title = strings.TrimSpace(before)
		if strings.Contains(after, "R$") {
			parts := strings.Split(title, "|")
			entry.Price = strings.TrimSpace(parts[len(parts)-1])
		}
	} else {
		entry.Title = title
	}
	if entry.Title == "" {
		return RawEntry{}, false
	}

	if m := itemNumberRegex.FindStringSubmatch(text); m != nil {
		entry.ItemNumber = m[1]
	}
	if m := codeRegex.FindStringSubmatch(text); m != nil {
		entry.Code = m[1]
	}
	if entry.Price == "" {
		entry.Price = priceRegex.FindString(text)
	}
	return entry, true
}

func itemsStrategy(selector string) func(doc *goquery.Document) []RawEntry {
	return func(doc *goquery.Document) []RawEntry {
		var entries []RawEntry
		doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
			entry, ok := entryFromItem(item)
			if ok {
				entries = append(entries, entry)
			}
		})
		return entries
	}
}

var rowIndicators = []string{
	"R$", "VALOR", "PRECO",
	"RUA", "AVENIDA", "ALAMEDA", "TRAVESSA",
	"M2", "M²",
	"APARTAMENTO", "CASA", "IMOVEL",
	"DORM", "QUARTO",
}

var propertyKinds = []string{"APARTAMENTO", "CASA", "SOBRADO", "TERRENO", "LOJA", "SALA"}

// tableRowsStrategy handles result pages rendered as plain tables: the first
// cell is the code, the price is the cell carrying R$.
func tableRowsStrategy(doc *goquery.Document) []RawEntry {
	var entries []RawEntry
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}
		cells := []string{}
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, htmlutil.SelectionText(cell))
		})
		if len(cells) < 3 {
			return
		}
		joined := strings.Join(cells, "\n")
		if !textutil.MatchName(joined, rowIndicators) {
			return
		}

		entry := RawEntry{Code: cells[0], Details: joined}
		for _, cell := range cells[1:] {
			if entry.Price == "" && strings.Contains(cell, "R$") {
				entry.Price = cell
			}
			if entry.Title == "" && textutil.MatchName(cell, propertyKinds) {
				entry.Title = cell
			}
		}
		if entry.Title == "" {
			entry.Title = cells[1]
		}
		if m := itemNumberRegex.FindStringSubmatch(joined); m != nil {
			entry.ItemNumber = m[1]
		}
		entries = append(entries, entry)
	})
	return entries
}
