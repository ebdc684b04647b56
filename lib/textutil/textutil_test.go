package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "São Paulo", expected: "SAO PAULO"},
		{in: "  SAO   PAULO \n", expected: "SAO PAULO"},
		{in: "Leilão", expected: "LEILAO"},
		{in: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, NormalizeName(test.in))
	}
}

func TestContainsFolded(t *testing.T) {
	require.True(t, ContainsFolded("1º Leilão SFI - Edital", "leilao"))
	require.False(t, ContainsFolded("Venda Direta Online", "leilao"))
	require.False(t, ContainsFolded("anything", " "))
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Apartamento, 2 quartos", []string{"casa", "apartamento"}))
	require.False(t, MatchName("Terreno", []string{"casa", "apartamento"}))
}
