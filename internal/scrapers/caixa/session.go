package caixa

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"caixa-imoveis/internal/components/assert"
	"caixa-imoveis/internal/components/chrono"
	"caixa-imoveis/internal/components/telemetry"
	"caixa-imoveis/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	report_session_init  = "session-manager.init"
	report_session_renew = "session-manager.renew"
)

const (
	landingPath  = "/sistema/busca-imovel.asp"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLang   = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"
)

// Session is one logical browsing session. It is replaced wholesale on renewal,
// nothing outside the SessionManager mutates it.
type Session struct {
	Identity  string
	CreatedAt time.Time
	Referer   string

	http *resty.Client
}

// Cookies returns the cookies the session holds for the given url.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	jar := s.http.GetClient().Jar
	if jar == nil {
		return nil
	}
	return jar.Cookies(u)
}

func (s *Session) send(ctx context.Context, req Request) (Response, error) {
	r := s.http.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}

	var (
		res *resty.Response
		err error
	)
	switch req.Method {
	case http.MethodGet:
		res, err = r.Get(req.Path)
	case http.MethodPost:
		res, err = r.
			SetHeader("X-Requested-With", "XMLHttpRequest").
			SetFormData(req.Form).
			Post(req.Path)
	default:
		return Response{}, fmt.Errorf("unsupported method %q", req.Method)
	}
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: res.StatusCode(), Body: res.Body()}, nil
}

type SessionManagerOptions struct {
	Config   Config
	Identity IdentityProvider
	Clock    chrono.API
	Gate     *RateGate
	Retry    RetryPolicy
	Tel      telemetry.API
	// Jitter returns the settle interval slept before a renewal, it defaults
	// to a uniform draw between the configured bounds.
	Jitter func() time.Duration
	// Dump receives every raw exchange when set.
	Dump restyutil.Output
}

// SessionManager owns the job's session: it establishes it, renews it when
// the portal challenges us and hands it to the request pipeline.
type SessionManager struct {
	cfg      Config
	identity IdentityProvider
	clock    chrono.API
	gate     *RateGate
	retry    RetryPolicy
	tel      telemetry.API
	jitter   func() time.Duration
	dump     restyutil.Output
	baseUrl  *url.URL

	mutex   sync.RWMutex
	current *Session
}

func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	assert.NotEmptyStr(opts.Config.BaseUrl, "base url")
	assert.NotNil(opts.Identity, "identity provider")
	assert.NotNil(opts.Clock, "clock")
	assert.NotNil(opts.Gate, "rate gate")
	assert.NotNil(opts.Tel, "telemetry")

	baseUrl, err := url.Parse(opts.Config.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jitter := opts.Jitter
	if jitter == nil {
		lo := seconds(opts.Config.RenewJitterMinSeconds)
		hi := seconds(opts.Config.RenewJitterMaxSeconds)
		jitter = func() time.Duration {
			if hi <= lo {
				return lo
			}
			return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
		}
	}

	return &SessionManager{
		cfg:      opts.Config,
		identity: opts.Identity,
		clock:    opts.Clock,
		gate:     opts.Gate,
		retry:    opts.Retry,
		tel:      telemetry.NewScopedAPI("caixa_scraper", opts.Tel),
		jitter:   jitter,
		dump:     opts.Dump,
		baseUrl:  baseUrl,
	}, nil
}

func (m *SessionManager) newSession(identity string) (*Session, error) {
	client := resty.New()
	client.SetBaseURL(m.cfg.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if !m.cfg.DisableTLSBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetTimeout(m.cfg.Timeout())
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(m.baseUrl.Hostname()))

	origin := fmt.Sprintf("%s://%s", m.baseUrl.Scheme, m.baseUrl.Host)
	referer := origin + landingPath + "?sltTipoBusca=imoveis"
	client.SetHeaders(map[string]string{
		"User-Agent":      identity,
		"Accept":          acceptHeader,
		"Accept-Language": acceptLang,
		"Connection":      "keep-alive",
		"Origin":          origin,
		"Referer":         referer,
	})

	telemetry.InstrumentResty(client, m.tel)
	if m.dump != nil {
		restyutil.Dump(client, m.dump)
	}

	return &Session{
		Identity:  identity,
		CreatedAt: m.clock.Now(),
		Referer:   referer,
		http:      client,
	}, nil
}

// establish builds a session and performs the bootstrap visit that seeds its
// cookies. A challenge during bootstrap is retried without renewal.
func (m *SessionManager) establish(ctx context.Context, identity string) (*Session, error) {
	sess, err := m.newSession(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionEstablishment, err)
	}

	bootstrap := m.retry.Wrap(m.gate.Wrap(Classify(sess.send)), nil)
	_, err = bootstrap(ctx, Request{
		Method: http.MethodGet,
		Path:   landingPath,
		Query:  map[string]string{"sltTipoBusca": "imoveis"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionEstablishment, err)
	}
	return sess, nil
}

// Init creates the first session of the job.
func (m *SessionManager) Init(ctx context.Context) error {
	sess, err := m.establish(ctx, m.identity.Identity())
	if err != nil {
		m.tel.ReportBroken(report_session_init, err)
		return err
	}
	m.swap(sess)
	m.tel.ReportDebug("session established", sess.Identity)
	return nil
}

// Renew discards the current session after a randomized settle interval and
// establishes a new one with a fresh identity. The new session only becomes
// visible once fully established, a cancelled renewal leaves no partial state.
func (m *SessionManager) Renew(ctx context.Context) error {
	settle := m.jitter()
	m.tel.ReportWarning(report_session_renew, settle.String())

	err := m.clock.Sleep(ctx, settle)
	if err != nil {
		return err
	}

	sess, err := m.establish(ctx, m.identity.Identity())
	if err != nil {
		m.tel.ReportBroken(report_session_renew, err)
		return err
	}
	m.swap(sess)
	m.tel.ReportDebug("session renewed", sess.Identity)
	return nil
}

func (m *SessionManager) swap(sess *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = sess
}

// Current returns the active session, nil before Init.
func (m *SessionManager) Current() *Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Send issues req on the active session.
func (m *SessionManager) Send(ctx context.Context, req Request) (Response, error) {
	sess := m.Current()
	if sess == nil {
		return Response{}, fmt.Errorf("%w: session not initialized", ErrSessionEstablishment)
	}
	return sess.send(ctx, req)
}
