package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	cases := []struct {
		utc    time.Time
		expect string
	}{
		{
			utc:    time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
			expect: "2024-01-01T09:00:00-03:00",
		},
		{
			utc:    time.Date(2024, time.March, 2, 1, 30, 0, 0, time.UTC),
			expect: "2024-03-01T22:30:00-03:00",
		},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, test.utc.In(Location).Format(time.RFC3339))
	}
}

func TestNow(t *testing.T) {
	require.Equal(t, "America/Sao_Paulo", Now().Location().String())
}
