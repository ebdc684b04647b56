package caixa

import (
	"time"

	"dario.cat/mergo"
)

const DefaultBaseUrl = "https://venda-imoveis.caixa.gov.br"

type RetryConfig struct {
	MaxAttempts       int     `json:"max_attempts"`
	MultiplierSeconds float64 `json:"multiplier_seconds"`
	CapSeconds        float64 `json:"cap_seconds"`
}

// CityOverride maps a name the portal does not list (or lists differently)
// to either a known city code or the canonical name used in the city listing.
type CityOverride struct {
	State     string `json:"state"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Canonical string `json:"canonical"`
}

type Config struct {
	BaseUrl               string  `json:"base_url"`
	RequestsPerSecond     int     `json:"requests_per_second"`
	InterPageDelaySeconds float64 `json:"inter_page_delay_seconds"`
	RenewJitterMinSeconds float64 `json:"renew_jitter_min_seconds"`
	RenewJitterMaxSeconds float64 `json:"renew_jitter_max_seconds"`
	TimeoutSeconds        float64 `json:"timeout_seconds"`
	// DisableTLSBypass turns off the browser-like TLS fingerprint transport.
	DisableTLSBypass bool              `json:"disable_tls_bypass"`
	Retry            RetryConfig       `json:"retry"`
	SearchFilters    map[string]string `json:"search_filters"`
	CityOverrides    []CityOverride    `json:"city_overrides"`
	// DumpDir, when set, receives the raw exchanges of every job under
	// <DumpDir>/<run id>/.
	DumpDir string `json:"dump_dir"`
}

func DefaultConfig() Config {
	return Config{
		BaseUrl:               DefaultBaseUrl,
		RequestsPerSecond:     6,
		InterPageDelaySeconds: 0.5,
		RenewJitterMinSeconds: 0.5,
		RenewJitterMaxSeconds: 1.5,
		TimeoutSeconds:        30,
		Retry: RetryConfig{
			MaxAttempts:       5,
			MultiplierSeconds: 0.5,
			CapSeconds:        6,
		},
	}
}

// WithDefaults fills every zero field of c from DefaultConfig.
func (c Config) WithDefaults() Config {
	err := mergo.Merge(&c, DefaultConfig())
	if err != nil {
		// both sides are the same struct type, mergo only fails on mismatched kinds.
		panic(err)
	}
	return c
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) InterPageDelay() time.Duration {
	return seconds(c.InterPageDelaySeconds)
}

func (c Config) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}
