package caixa

import (
	"bytes"
	"regexp"
	"strings"

	"caixa-imoveis/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Option is one (code, name) entry of a city or neighborhood listing.
type Option struct {
	Code string
	Name string
}

// OptionStrategy parses a listing, it returns nil when its markup shape is absent.
type OptionStrategy struct {
	Name  string
	Parse func(markup []byte) []Option
}

// OptionStrategies are tried in order, the first one that yields options wins.
// The portal's listings are unterminated `<option value='X'>NAME<br>` runs, a
// structural parser nests every option inside the previous one, so the
// pattern strategy comes first.
var OptionStrategies = []OptionStrategy{
	{Name: "option-pattern", Parse: parseOptionPattern},
	{Name: "checkbox-inputs", Parse: parseCheckboxInputs},
	{Name: "text-blocks", Parse: parseTextBlocks},
}

var optionPattern = regexp.MustCompile(`(?is)<option\b[^>]*?\bvalue\s*=\s*['"]?([^'"\s>]*)['"]?[^>]*>([^<]*)`)

func parseOptionPattern(markup []byte) []Option {
	var out []Option
	for _, match := range optionPattern.FindAllSubmatch(markup, -1) {
		code := strings.TrimSpace(string(match[1]))
		name := htmlutil.CleanText(html.UnescapeString(string(match[2])))
		if code == "" || name == "" {
			continue
		}
		out = append(out, Option{Code: code, Name: name})
	}
	return out
}

func parseCheckboxInputs(markup []byte) []Option {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil
	}
	var out []Option
	doc.Find("input[type=checkbox]").Each(func(_ int, input *goquery.Selection) {
		code := strings.TrimSpace(input.AttrOr("value", ""))
		name := ""
		if id, ok := input.Attr("id"); ok && id != "" {
			name = htmlutil.SelectionText(doc.Find("label[for='" + id + "']"))
		}
		if name == "" {
			for sibling := input.Nodes[0].NextSibling; sibling != nil; sibling = sibling.NextSibling {
				if sibling.Type == html.ElementNode && (sibling.Data == "br" || sibling.Data == "input") {
					break
				}
				name = htmlutil.CleanText(name + " " + htmlutil.GetText(sibling))
			}
		}
		if code == "" || name == "" {
			return
		}
		out = append(out, Option{Code: code, Name: name})
	})
	return out
}

func parseTextBlocks(markup []byte) []Option {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []Option
	doc.Find("li, label, a, span").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		name := htmlutil.SelectionText(sel)
		if len([]rune(name)) <= 2 {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, Option{Name: name})
	})
	return out
}

// ParseOptions runs OptionStrategies in order and reports which one matched.
func ParseOptions(markup []byte) ([]Option, string) {
	for _, strategy := range OptionStrategies {
		options := strategy.Parse(markup)
		if len(options) > 0 {
			return options, strategy.Name
		}
	}
	return nil, ""
}
