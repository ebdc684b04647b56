package caixa

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"caixa-imoveis/internal/components/assert"
	"caixa-imoveis/internal/components/chrono"
	"caixa-imoveis/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("caixa-imoveis.scrapers.caixa")

const (
	cityListPath      = "/sistema/carregaListaCidades.asp"
	neighborhoodsPath = "/sistema/carregaListaBairros.asp"
	searchPath        = "/sistema/carregaPesquisaImoveis.asp"
	pageFragmentPath  = "/sistema/carregaListaImoveis.asp"
)

const (
	report_navigation_list_cities        = "navigation.list-cities"
	report_navigation_load_neighborhoods = "navigation.load-neighborhoods"
)

type Stage int

const (
	StageStart Stage = iota
	StageCityResolved
	StageNeighborhoodsLoaded
	StageSearchInitiated
	StagePagesIterating
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageCityResolved:
		return "city-resolved"
	case StageNeighborhoodsLoaded:
		return "neighborhoods-loaded"
	case StageSearchInitiated:
		return "search-initiated"
	case StagePagesIterating:
		return "pages-iterating"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// NavigationState is the protocol's progress for one city. Only the
// Navigator mutates it.
type NavigationState struct {
	State         string
	City          string
	CityCode      string
	Neighborhoods map[string]struct{}
	TotalPages    int
	TotalRecords  int
	// Tokens maps a 1-based page index to its pagination token, keys are
	// never overwritten once set.
	Tokens map[int]string
	Stage  Stage
}

func NewNavigationState(state, city string) *NavigationState {
	return &NavigationState{
		State:         strings.ToUpper(strings.TrimSpace(state)),
		City:          city,
		Neighborhoods: map[string]struct{}{},
		Tokens:        map[int]string{},
		Stage:         StageStart,
	}
}

// NeighborhoodNames returns the loaded neighborhood set, sorted.
func (s *NavigationState) NeighborhoodNames() []string {
	names := make([]string, 0, len(s.Neighborhoods))
	for name := range s.Neighborhoods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *NavigationState) addTokens(tokens map[int]string) {
	for page, token := range tokens {
		if _, exists := s.Tokens[page]; !exists {
			s.Tokens[page] = token
		}
	}
}

func (s *NavigationState) advance(from, to Stage) error {
	if s.Stage != from {
		return fmt.Errorf("%w: %s -> %s from stage %s", ErrInvalidTransition, from, to, s.Stage)
	}
	s.Stage = to
	return nil
}

// contiguousPages counts tokens present for pages 1, 2, ... without a gap.
func contiguousPages(tokens map[int]string) int {
	count := 0
	for {
		if _, ok := tokens[count+1]; !ok {
			return count
		}
		count++
	}
}

// PageVisitor receives every page's fragment in order. Returning false stops
// the iteration early.
type PageVisitor func(page int, fragment Fragment) bool

type Navigator struct {
	req       Requester
	extractor *Extractor
	clock     chrono.API
	config    Config
	overrides []CityOverride
	tel       telemetry.API
}

func NewNavigator(req Requester, extractor *Extractor, clock chrono.API, config Config, tel telemetry.API) *Navigator {
	assert.NotNil(req, "requester")
	assert.NotNil(extractor, "extractor")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")
	return &Navigator{
		req:       req,
		extractor: extractor,
		clock:     clock,
		config:    config,
		overrides: mergeOverrides(config.CityOverrides),
		tel:       telemetry.NewScopedAPI("caixa_scraper", tel),
	}
}

func failSpan(span trace.Span, err error, description string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}

// ListCities fetches and parses the city listing of a state.
func (n *Navigator) ListCities(ctx context.Context, state string) ([]Option, error) {
	ctx, span := tracer.Start(ctx, "ListCities", trace.WithAttributes(attribute.String("state", state)))
	defer span.End()

	body, err := n.req.Get(ctx, cityListPath, map[string]string{"cmb_estado": state})
	if err != nil {
		failSpan(span, err, "failed to fetch city listing")
		return nil, fmt.Errorf("fetch city listing for %s: %w", state, err)
	}
	options, strategy := ParseOptions(body)
	if strategy == "" {
		n.tel.ReportWarning(report_navigation_list_cities, fmt.Errorf("%w: empty city listing for %s", ErrParseDegraded, state))
	}
	span.SetAttributes(attribute.Int("cities", len(options)), attribute.String("strategy", strategy))
	return options, nil
}

// ResolveCity moves Start -> CityResolved.
func (n *Navigator) ResolveCity(ctx context.Context, s *NavigationState) error {
	if s.Stage != StageStart {
		return s.advance(StageStart, StageCityResolved)
	}
	ctx, span := tracer.Start(ctx, "ResolveCity", trace.WithAttributes(
		attribute.String("state", s.State),
		attribute.String("city", s.City),
	))
	defer span.End()

	listing, err := n.ListCities(ctx, s.State)
	if err != nil {
		failSpan(span, err, "failed to list cities")
		return err
	}
	city, matcher, err := MatchCity(s.State, s.City, listing, n.overrides)
	if err != nil {
		failSpan(span, err, "city not resolved")
		return err
	}
	span.SetAttributes(attribute.String("code", city.Code), attribute.String("matcher", matcher))
	n.tel.ReportDebug("city resolved", s.State, s.City, city.Name, city.Code, matcher)

	s.CityCode = city.Code
	return s.advance(StageStart, StageCityResolved)
}

// LoadNeighborhoods moves CityResolved -> NeighborhoodsLoaded.
func (n *Navigator) LoadNeighborhoods(ctx context.Context, s *NavigationState) error {
	if s.Stage != StageCityResolved {
		return s.advance(StageCityResolved, StageNeighborhoodsLoaded)
	}
	ctx, span := tracer.Start(ctx, "LoadNeighborhoods", trace.WithAttributes(attribute.String("city_code", s.CityCode)))
	defer span.End()

	body, err := n.req.Post(ctx, neighborhoodsPath, map[string]string{
		"cmb_estado": s.State,
		"cmb_cidade": s.CityCode,
	})
	if err != nil {
		failSpan(span, err, "failed to fetch neighborhoods")
		return fmt.Errorf("fetch neighborhoods for %s: %w", s.CityCode, err)
	}
	options, strategy := ParseOptions(body)
	if strategy == "" {
		n.tel.ReportWarning(report_navigation_load_neighborhoods, fmt.Errorf("%w: no neighborhoods for city %s", ErrParseDegraded, s.CityCode))
	}
	for _, option := range options {
		s.Neighborhoods[option.Name] = struct{}{}
	}
	span.SetAttributes(attribute.Int("neighborhoods", len(s.Neighborhoods)))
	return s.advance(StageCityResolved, StageNeighborhoodsLoaded)
}

func (n *Navigator) searchForm(s *NavigationState) map[string]string {
	form := map[string]string{
		"hdn_estado":             s.State,
		"hdn_cidade":             s.CityCode,
		"hdn_bairro":             "",
		"hdn_tp_venda":           "",
		"hdn_tp_imovel":          "",
		"hdn_area_util":          "",
		"hdn_faixa_vlr":          "",
		"hdn_quartos":            "",
		"hdn_vg_garagem":         "",
		"strValorSimulador":      "",
		"strAceitaFGTS":          "",
		"strAceitaFinanciamento": "",
	}
	for key, value := range n.config.SearchFilters {
		form[key] = value
	}
	return form
}

// InitiateSearch moves NeighborhoodsLoaded -> SearchInitiated and returns
// the first page's fragment.
func (n *Navigator) InitiateSearch(ctx context.Context, s *NavigationState) (Fragment, error) {
	if s.Stage != StageNeighborhoodsLoaded {
		return Fragment{}, s.advance(StageNeighborhoodsLoaded, StageSearchInitiated)
	}
	ctx, span := tracer.Start(ctx, "InitiateSearch", trace.WithAttributes(attribute.String("city_code", s.CityCode)))
	defer span.End()

	body, err := n.req.Post(ctx, searchPath, n.searchForm(s))
	if err != nil {
		failSpan(span, err, "failed to initiate search")
		return Fragment{}, fmt.Errorf("initiate search for %s: %w", s.CityCode, err)
	}
	first, err := n.extractor.Extract(body)
	if err != nil {
		failSpan(span, err, "failed to parse first page")
		return Fragment{}, err
	}

	s.addTokens(first.Tokens)
	s.TotalPages = first.TotalPages
	s.TotalRecords = first.TotalRecords
	if !first.HasTotals {
		s.TotalPages = contiguousPages(s.Tokens)
	}
	if s.TotalPages == 0 && len(first.Entries) > 0 {
		s.TotalPages = 1
	}
	span.SetAttributes(
		attribute.Int("total_pages", s.TotalPages),
		attribute.Int("total_records", s.TotalRecords),
		attribute.Int("tokens", len(s.Tokens)),
	)
	return first, s.advance(StageNeighborhoodsLoaded, StageSearchInitiated)
}

// IteratePages hands the first fragment to visit, then fetches pages
// 2..TotalPages with their tokens. A page without a token ends the
// iteration. It moves SearchInitiated -> PagesIterating -> Done.
func (n *Navigator) IteratePages(ctx context.Context, s *NavigationState, first Fragment, visit PageVisitor) error {
	err := s.advance(StageSearchInitiated, StagePagesIterating)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "IteratePages", trace.WithAttributes(attribute.Int("total_pages", s.TotalPages)))
	defer span.End()

	fetched := 1
	if visit(1, first) {
		for page := 2; page <= s.TotalPages; page++ {
			token, ok := s.Tokens[page]
			if !ok {
				n.tel.ReportDebug("no token for page, end of data", page, s.TotalPages, SortedPages(s.Tokens))
				break
			}
			err = n.clock.Sleep(ctx, n.config.InterPageDelay())
			if err != nil {
				failSpan(span, err, "cancelled between pages")
				return err
			}
			body, err := n.req.Post(ctx, pageFragmentPath, map[string]string{"hdnImov": token})
			if err != nil {
				failSpan(span, err, "failed to fetch page")
				return fmt.Errorf("fetch page %d of %s: %w", page, s.CityCode, err)
			}
			fragment, err := n.extractor.Extract(body)
			if err != nil {
				failSpan(span, err, "failed to parse page")
				return fmt.Errorf("parse page %d of %s: %w", page, s.CityCode, err)
			}
			s.addTokens(fragment.Tokens)
			fetched++
			if !visit(page, fragment) {
				break
			}
		}
	}
	span.SetAttributes(attribute.Int("pages", fetched))
	return s.advance(StagePagesIterating, StageDone)
}
