package caixa

import (
	"context"
	"fmt"
	"path/filepath"

	"caixa-imoveis/internal/components/assert"
	"caixa-imoveis/internal/components/chrono"
	"caixa-imoveis/internal/components/telemetry"
	"caixa-imoveis/lib/restyutil"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_scraper_scrape  = "scraper.scrape"
	report_scraper_records = "scraper.records"
)

type Options struct {
	Config Config
	// Identity defaults to RandomIdentity.
	Identity IdentityProvider
	// Clock defaults to chrono.StandardImpl.
	Clock chrono.API
	// Gate may be shared between scrapers, it defaults to a private gate at
	// Config.RequestsPerSecond.
	Gate *RateGate
	Tel  telemetry.API
}

// Scraper runs the navigation protocol for one city at a time. Every call to
// Scrape or ListCities gets its own session.
type Scraper struct {
	config   Config
	identity IdentityProvider
	clock    chrono.API
	gate     *RateGate
	tel      telemetry.API
}

func NewScraper(opts Options) *Scraper {
	assert.NotNil(opts.Tel, "telemetry")

	config := opts.Config.WithDefaults()
	identity := opts.Identity
	if identity == nil {
		identity = RandomIdentity{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = chrono.StandardImpl{}
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewRateGate(config.RequestsPerSecond, clock)
	}

	return &Scraper{
		config:   config,
		identity: identity,
		clock:    clock,
		gate:     gate,
		tel:      opts.Tel,
	}
}

type Result struct {
	RunID      string
	State      string
	City       string
	Navigation *NavigationState
	Records    []PropertyRecord
	// Pages is the number of page fragments processed.
	Pages int
}

type job struct {
	runId     string
	tel       telemetry.API
	sessions  *SessionManager
	navigator *Navigator
}

func (s *Scraper) newJob(ctx context.Context) (job, error) {
	runId, err := random.String(8)
	if err != nil {
		return job{}, fmt.Errorf("generate run id: %w", err)
	}
	tel := telemetry.NewScopedAPI(runId, s.tel)

	var dump restyutil.Output
	if s.config.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(filepath.Join(s.config.DumpDir, runId))
		if err != nil {
			return job{}, fmt.Errorf("create dump dir: %w", err)
		}
		dump = out
	}

	retry := NewRetryPolicy(s.config.Retry, s.clock, tel)
	sessions, err := NewSessionManager(SessionManagerOptions{
		Config:   s.config,
		Identity: s.identity,
		Clock:    s.clock,
		Gate:     s.gate,
		Retry:    retry,
		Tel:      tel,
		Dump:     dump,
	})
	if err != nil {
		return job{}, err
	}
	err = sessions.Init(ctx)
	if err != nil {
		return job{}, err
	}

	executor := NewExecutor(sessions, s.gate, retry)
	navigator := NewNavigator(executor, NewExtractor(tel), s.clock, s.config, tel)
	return job{
		runId:     runId,
		tel:       tel,
		sessions:  sessions,
		navigator: navigator,
	}, nil
}

// ListCities returns the portal's city listing for a state.
func (s *Scraper) ListCities(ctx context.Context, state string) ([]Option, error) {
	j, err := s.newJob(ctx)
	if err != nil {
		return nil, err
	}
	return j.navigator.ListCities(ctx, NewNavigationState(state, "").State)
}

// Scrape runs every navigation stage for one city and returns the normalized
// records of all pages. Any fatal error aborts the whole city, partial
// records are never returned.
func (s *Scraper) Scrape(ctx context.Context, state, city string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Scrape", trace.WithAttributes(
		attribute.String("state", state),
		attribute.String("city", city),
	))
	defer span.End()

	j, err := s.newJob(ctx)
	if err != nil {
		failSpan(span, err, "failed to start job")
		return Result{}, err
	}
	span.SetAttributes(attribute.String("run_id", j.runId))

	nav := NewNavigationState(state, city)
	result := Result{
		RunID:      j.runId,
		State:      nav.State,
		City:       city,
		Navigation: nav,
	}

	err = j.navigator.ResolveCity(ctx, nav)
	if err != nil {
		failSpan(span, err, "failed to resolve city")
		return Result{}, err
	}
	err = j.navigator.LoadNeighborhoods(ctx, nav)
	if err != nil {
		failSpan(span, err, "failed to load neighborhoods")
		return Result{}, err
	}
	first, err := j.navigator.InitiateSearch(ctx, nav)
	if err != nil {
		failSpan(span, err, "failed to initiate search")
		return Result{}, err
	}

	normalizer := NewNormalizer(nav.NeighborhoodNames())
	err = j.navigator.IteratePages(ctx, nav, first, func(page int, fragment Fragment) bool {
		result.Pages++
		for _, entry := range fragment.Entries {
			result.Records = append(result.Records, normalizer.Normalize(entry))
		}
		j.tel.ReportDebug("page processed", page, len(fragment.Entries), fragment.Strategy)
		return nav.TotalRecords <= 0 || len(result.Records) < nav.TotalRecords
	})
	if err != nil {
		failSpan(span, err, "failed to iterate pages")
		return Result{}, err
	}

	if len(result.Records) == 0 && nav.TotalRecords > 0 {
		j.tel.ReportWarning(report_scraper_scrape, fmt.Errorf("%w: %d records declared, none extracted", ErrParseDegraded, nav.TotalRecords))
	}
	j.tel.ReportCount(report_scraper_records, int64(len(result.Records)))
	span.SetAttributes(attribute.Int("records", len(result.Records)), attribute.Int("pages", result.Pages))
	return result, nil
}
