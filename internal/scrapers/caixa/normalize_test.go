package caixa

import (
	"testing"

	"caixa-imoveis/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFirstPage(t *testing.T) {
	fragment, err := NewExtractor(&telemetry.Recorder{}).Extract(searchPage1Fixture)
	require.NoError(t, err)
	neighborhoods, _ := ParseOptions(neighborhoodsFixture)
	names := []string{}
	for _, n := range neighborhoods {
		names = append(names, n.Name)
	}

	record := NewNormalizer(names).Normalize(fragment.Entries[0])
	expected := PropertyRecord{
		Code:         "1444404512345",
		ItemNumber:   "7",
		Title:        "SAO PAULO - GUAIANASES",
		Address:      "RUA CARMEM SILVA,N. 55 Apto. 808 TORRE 01, , GUAIANASES",
		Neighborhood: "GUAIANASES",
		PropertyType: Apartment,
		Area:         "",
		Bedrooms:     "2 quarto(s)",
		Price:        "R$ 197.857,57",
		Modality:     Auction,
	}
	if diff := cmp.Diff(expected, record); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanAddress(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{
			in:       "Apartamento - 2 quarto(s) - RUA DAS FLORES, N. 10, CENTRO",
			expected: "RUA DAS FLORES, N. 10, CENTRO",
		},
		{
			in:       "Valor de avaliação: R$ 200.000,00 Valor mínimo de venda: R$ 150.000,00 desconto de 25% RUA A, N. 1",
			expected: "RUA A, N. 1",
		},
		{
			in:       "Número do imóvel: 1444-0 AVENIDA B,  N. 2 , , ",
			expected: "AVENIDA B, N. 2",
		},
		{
			in:       "Venda Direta Online   ALAMEDA C, 3",
			expected: "ALAMEDA C, 3",
		},
		{
			in:       "RUA CARMEM SILVA,N. 55 Apto. 808 TORRE 01, , GUAIANASES",
			expected: "RUA CARMEM SILVA,N. 55 Apto. 808 TORRE 01, , GUAIANASES",
		},
		{
			in:       "Casa - 2 Venda Direta Online quarto(s) - RUA X, 10, VILA MARIA",
			expected: "RUA X, 10, VILA MARIA",
		},
		{
			in:       "Apartamento - 1 Número do imóvel: 8555 quarto(s) - Venda Direta Online RUA Y, 5",
			expected: "RUA Y, 5",
		},
		{in: "  ", expected: ""},
	}
	for _, test := range testCases {
		once := CleanAddress(test.in)
		require.Equal(t, test.expected, once)
		require.Equal(t, once, CleanAddress(once), "cleaning %q twice changed it", test.in)
	}
}

func TestInferNeighborhood(t *testing.T) {
	normalizer := NewNormalizer([]string{"VILA MARIANA", "Bela Vista", "JARDIM SÃO LUÍS"})

	testCases := []struct {
		address  string
		expected string
	}{
		{address: "RUA DOMINGOS DE MORAIS, N. 10, VILA MARIANA", expected: "VILA MARIANA"},
		{address: "AVENIDA PAULISTA, 900, bela vista", expected: "Bela Vista"},
		{address: "ESTRADA DO M BOI MIRIM, 5, JARDIM SAO LUIS", expected: "JARDIM SÃO LUÍS"},
		{address: "RUA X, 1, JARDIM ANGELA - SAO PAULO", expected: "JARDIM ANGELA"},
		{address: "RUA Y, 2, PARQUE DO CARMO, SAO PAULO", expected: "PARQUE DO CARMO"},
		{address: "RUA EVILASIO, 3, ITAQUERA", expected: "ITAQUERA"},
		{address: "TRAVESSA BELA VISTANA, 8", expected: "Bela Vista"},
		{address: "RUA A, 1, Jardim Ângela - SP", expected: "Jardim Ângela"},
		{address: "RUA B, 2, Cidade  Tiradentes", expected: "Cidade Tiradentes"},
		{address: "RUA C, 3, VILA RE", expected: ""},
		{address: "RUA D, 4, São Mateus", expected: ""},
		{address: "RUA E, 5, Itaquerão", expected: "Itaquerão"},
		{address: "RUA Z, 4, SP", expected: ""},
		{address: "RUA W, 5, APTO 12", expected: ""},
		{address: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, normalizer.InferNeighborhood(test.address), test.address)
	}
}

func TestClassifyText(t *testing.T) {
	require.Equal(t, Apartment, ClassifyType("Apartamento - 2 quarto(s)"))
	require.Equal(t, House, ClassifyType("CASA - 3 quarto(s)"))
	require.Equal(t, Apartment, ClassifyType("Apartamento em casa de vila"))
	require.Equal(t, Unknown, ClassifyType("Terreno - 0 quarto(s)"))

	require.Equal(t, Auction, ClassifyModality("1º Leilão SFI"))
	require.Equal(t, Auction, ClassifyModality("LEILAO"))
	require.Equal(t, DirectSale, ClassifyModality("Venda Direta Online"))
	require.Equal(t, Unclassified, ClassifyModality("Venda Online"))
}

func TestNormalizeAreaAndBedrooms(t *testing.T) {
	record := NewNormalizer(nil).Normalize(RawEntry{
		Title:   "X",
		Details: "Casa - 1 quarto(s) - Venda Direta Online\nÁrea total: 125,40 m²\nRUA A, N. 1, , ITAIM",
	})
	require.Equal(t, "125,40 m²", record.Area)
	require.Equal(t, "1 quarto(s)", record.Bedrooms)
	require.Equal(t, House, record.PropertyType)
	require.Equal(t, DirectSale, record.Modality)
	require.Equal(t, "RUA A, N. 1, , ITAIM", record.Address)
	require.Equal(t, "ITAIM", record.Neighborhood)
}

func TestRecordValues(t *testing.T) {
	record := PropertyRecord{Code: "1", PropertyType: House, Modality: Auction}
	values := record.Values()
	require.Len(t, values, len(RecordColumns))
	require.Equal(t, "1", values[0])
	require.Equal(t, "House", values[5])
	require.Equal(t, "Auction", values[9])
}
