package caixa

import (
	"strings"

	"caixa-imoveis/lib/textutil"

	"github.com/antzucaro/matchr"
)

// defaultCityOverrides covers names users commonly type that the portal's
// listing spells differently.
var defaultCityOverrides = []CityOverride{
	{State: "SP", Name: "SAO PAULO CAPITAL", Canonical: "SAO PAULO"},
	{State: "SP", Name: "SAMPA", Canonical: "SAO PAULO"},
	{State: "RJ", Name: "RIO", Canonical: "RIO DE JANEIRO"},
	{State: "MG", Name: "BH", Canonical: "BELO HORIZONTE"},
	{State: "DF", Name: "PLANO PILOTO", Canonical: "BRASILIA"},
	{State: "BA", Name: "SALVADOR DA BAHIA", Canonical: "SALVADOR"},
}

// CityMatcher is one step of city resolution, it returns false when it has
// no opinion so the next step can be tried.
type CityMatcher struct {
	Name  string
	Match func(target string, candidates []Option) (Option, bool)
}

// CityMatchers are the first two resolution steps, in precedence order.
// The override table and the not-found error follow them in MatchCity.
var CityMatchers = []CityMatcher{
	{Name: "exact", Match: matchExact},
	{Name: "substring", Match: matchSubstring},
}

func matchExact(target string, candidates []Option) (Option, bool) {
	for _, c := range candidates {
		if textutil.NormalizeName(c.Name) == target {
			return c, true
		}
	}
	return Option{}, false
}

// matchSubstring returns the first candidate, in listing order, whose name
// contains the target.
func matchSubstring(target string, candidates []Option) (Option, bool) {
	for _, c := range candidates {
		if strings.Contains(textutil.NormalizeName(c.Name), target) {
			return c, true
		}
	}
	return Option{}, false
}

func matchOverride(state, target string, overrides []CityOverride, listing []Option) (Option, bool) {
	state = textutil.NormalizeName(state)
	for _, o := range overrides {
		if textutil.NormalizeName(o.State) != state || textutil.NormalizeName(o.Name) != target {
			continue
		}
		name := o.Canonical
		if name == "" {
			name = o.Name
		}
		if o.Code != "" {
			return Option{Code: o.Code, Name: name}, true
		}
		if found, ok := matchExact(textutil.NormalizeName(name), listing); ok {
			return found, true
		}
	}
	return Option{}, false
}

// MatchCity resolves a city name against the portal's listing: exact
// normalized match, then substring containment, then the override table.
func MatchCity(state, city string, listing []Option, overrides []CityOverride) (Option, string, error) {
	target := textutil.NormalizeName(city)
	if target != "" {
		for _, matcher := range CityMatchers {
			if found, ok := matcher.Match(target, listing); ok {
				return found, matcher.Name, nil
			}
		}
		if found, ok := matchOverride(state, target, overrides, listing); ok {
			return found, "override", nil
		}
	}
	return Option{}, "", &CityNotFoundError{
		State:      state,
		City:       city,
		Suggestion: suggestCity(target, listing),
	}
}

func suggestCity(target string, listing []Option) string {
	best := ""
	bestScore := 0.0
	for _, c := range listing {
		score := matchr.JaroWinkler(target, textutil.NormalizeName(c.Name), false)
		if score > bestScore {
			bestScore = score
			best = c.Name
		}
	}
	return best
}

func mergeOverrides(configured []CityOverride) []CityOverride {
	out := make([]CityOverride, 0, len(configured)+len(defaultCityOverrides))
	out = append(out, configured...)
	return append(out, defaultCityOverrides...)
}
