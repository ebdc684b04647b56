package caixa

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"caixa-imoveis/lib/htmlutil"
	"caixa-imoveis/lib/textutil"
)

type PropertyType string

const (
	Apartment PropertyType = "Apartment"
	House     PropertyType = "House"
	Unknown   PropertyType = "Unknown"
)

type Modality string

const (
	Auction    Modality = "Auction"
	DirectSale Modality = "Direct Sale"
	// Unclassified is used when the text names neither modality.
	Unclassified Modality = ""
)

// PropertyRecord is one normalized listing. It is a value and is never
// modified after Normalize returns it.
type PropertyRecord struct {
	Code         string       `json:"code"`
	ItemNumber   string       `json:"item_number"`
	Title        string       `json:"title"`
	Address      string       `json:"address"`
	Neighborhood string       `json:"neighborhood"`
	PropertyType PropertyType `json:"property_type"`
	Area         string       `json:"area"`
	Bedrooms     string       `json:"bedrooms"`
	Price        string       `json:"price"`
	Modality     Modality     `json:"modality"`
}

// RecordColumns lists the flat field names in output order.
var RecordColumns = []string{
	"code", "item_number", "title", "address", "neighborhood",
	"property_type", "area", "bedrooms", "price", "modality",
}

// Values returns the record's fields in RecordColumns order.
func (r PropertyRecord) Values() []string {
	return []string{
		r.Code, r.ItemNumber, r.Title, r.Address, r.Neighborhood,
		string(r.PropertyType), r.Area, r.Bedrooms, r.Price, string(r.Modality),
	}
}

// addressNoise is applied in order, each pattern once per call.
var addressNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(valor de )?avalia[çc][ãa]o:\s*(R\$)?[^A-Z]*`),
	regexp.MustCompile(`(?i)valor m[íi]nimo de venda:\s*(R\$)?[^A-Z]*`),
	regexp.MustCompile(`(?i)desconto de[^A-Z]*`),
	regexp.MustCompile(`(?i)(apartamento|casa|sobrado|terreno|loja|sala|pr[ée]dio)\s*-\s*\d+\s*quarto\(s\)\s*-[^A-Z]*`),
	regexp.MustCompile(`(?i)venda direta online[^A-Z]*`),
	regexp.MustCompile(`(?i)n[úu]mero do im[óo]vel:\s*[0-9\-]+\s*`),
}

var (
	whitespaceRun     = regexp.MustCompile(`\s+`)
	trailingCommaRun  = regexp.MustCompile(`(\s*,)+\s*$`)
	areaRegex         = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m(?:2|²)`)
	bedroomsRegex     = regexp.MustCompile(`(?i)(\d+)\s*quarto`)
	addressLabelRegex = regexp.MustCompile(`(?i)^n[úu]mero do (item|im[óo]vel):`)
)

var streetPrefixes = []string{"RUA ", "AVENIDA ", "AV ", "AV. ", "ALAMEDA ", "TRAVESSA ", "PRACA ", "ESTRADA ", "RODOVIA "}

// neighborhoodPrefixes are tried in order, each matches the prefix word at a
// word start up to the next comma.
var neighborhoodPrefixes = []*regexp.Regexp{
	prefixPattern("VILA"),
	prefixPattern("JARDIM"),
	prefixPattern("PARQUE"),
	prefixPattern("CIDADE"),
	prefixPattern("CONJUNTO"),
}

func prefixPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + word + `\s[^,]*)`)
}

// CleanAddress strips boilerplate from an address block. It is idempotent:
// removing one kind of noise can join the pieces of another, so the patterns
// are applied until nothing matches.
func CleanAddress(address string) string {
	for {
		cleaned := address
		for _, noise := range addressNoise {
			cleaned = noise.ReplaceAllString(cleaned, "")
		}
		if cleaned == address {
			break
		}
		address = cleaned
	}
	address = whitespaceRun.ReplaceAllString(address, " ")
	address = strings.TrimSpace(address)
	address = trailingCommaRun.ReplaceAllString(address, "")
	return strings.TrimSpace(address)
}

func isStreetLine(line string) bool {
	normalized := textutil.NormalizeName(line)
	for _, prefix := range streetPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// addressLine picks the line following the item/property number labels,
// falling back to the first line that starts with a street prefix.
func addressLine(lines []string) string {
	for i, line := range lines {
		if !addressLabelRegex.MatchString(line) {
			continue
		}
		for _, next := range lines[i+1:] {
			if addressLabelRegex.MatchString(next) {
				continue
			}
			if strings.HasPrefix(textutil.NormalizeName(next), "DESPESAS") {
				break
			}
			return next
		}
	}
	for _, line := range lines {
		if isStreetLine(line) {
			return line
		}
	}
	return ""
}

type Normalizer struct {
	// neighborhoods holds the known names, longest first.
	neighborhoods []string
}

func NewNormalizer(neighborhoods []string) Normalizer {
	known := make([]string, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		if textutil.NormalizeName(n) != "" {
			known = append(known, n)
		}
	}
	sort.SliceStable(known, func(i, j int) bool {
		return len(textutil.NormalizeName(known[i])) > len(textutil.NormalizeName(known[j]))
	})
	return Normalizer{neighborhoods: known}
}

func (n Normalizer) Normalize(entry RawEntry) PropertyRecord {
	lines := strings.Split(entry.Details, "\n")
	address := CleanAddress(addressLine(lines))

	text := entry.Details
	if text == "" {
		text = entry.Title
	}

	return PropertyRecord{
		Code:         htmlutil.CleanText(entry.Code),
		ItemNumber:   htmlutil.CleanText(entry.ItemNumber),
		Title:        htmlutil.CleanText(entry.Title),
		Address:      address,
		Neighborhood: n.InferNeighborhood(address),
		PropertyType: ClassifyType(text),
		Area:         extractArea(text),
		Bedrooms:     extractBedrooms(text),
		Price:        htmlutil.CleanText(entry.Price),
		Modality:     ClassifyModality(text),
	}
}

// InferNeighborhood tries the known names, then common neighborhood
// prefixes, then the trailing comma segment of the address. Fallbacks return
// the text as written in the address.
func (n Normalizer) InferNeighborhood(address string) string {
	normalized := textutil.NormalizeName(address)
	if normalized == "" {
		return ""
	}
	for _, known := range n.neighborhoods {
		if strings.Contains(normalized, textutil.NormalizeName(known)) {
			return known
		}
	}
	if found := neighborhoodByPrefix(address); found != "" {
		return found
	}
	return trailingSegment(address)
}

func neighborhoodByPrefix(address string) string {
	for _, pattern := range neighborhoodPrefixes {
		for _, match := range pattern.FindAllStringSubmatch(address, -1) {
			candidate := match[1]
			if cut := strings.Index(candidate, " - "); cut >= 0 {
				candidate = candidate[:cut]
			}
			candidate = whitespaceRun.ReplaceAllString(strings.TrimSpace(candidate), " ")
			prefix, _, _ := strings.Cut(candidate, " ")
			if len([]rune(candidate)) > len(prefix)+4 {
				return candidate
			}
		}
	}
	return ""
}

func trailingSegment(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return ""
	}
	last := strings.TrimSpace(parts[len(parts)-1])
	if len([]rune(last)) <= 4 {
		return ""
	}
	for _, c := range last {
		if !unicode.IsLetter(c) {
			return ""
		}
	}
	return last
}

func ClassifyType(text string) PropertyType {
	switch {
	case textutil.ContainsFolded(text, "apartamento"):
		return Apartment
	case textutil.ContainsFolded(text, "casa"):
		return House
	default:
		return Unknown
	}
}

func ClassifyModality(text string) Modality {
	switch {
	case textutil.ContainsFolded(text, "leilao"):
		return Auction
	case textutil.ContainsFolded(text, "venda direta"):
		return DirectSale
	default:
		return Unclassified
	}
}

func extractArea(text string) string {
	m := areaRegex.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + " m²"
}

func extractBedrooms(text string) string {
	m := bedroomsRegex.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + " quarto(s)"
}
