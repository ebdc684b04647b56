package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex    sync.Mutex
	ids      []string
	contents []string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.ids = append(o.ids, id)
	o.contents = append(o.contents, contents)
}

func TestExchangeId(t *testing.T) {
	cases := []struct {
		method string
		url    string
		id     string
	}{
		{"GET", "https://example.com/sistema/busca-imovel.asp?sltTipoBusca=imoveis", "GET_sistema_busca-imovel.asp"},
		{"POST", "http://127.0.0.1:8080/sistema/carregaListaImoveis.asp", "POST_sistema_carregaListaImoveis.asp"},
		{"GET", "https://example.com", "GET_root"},
		{"GET", "https://example.com?sltTipoBusca=imoveis", "GET_root"},
		{"GET", "/relative/path#frag", "GET_relative_path"},
	}
	for _, c := range cases {
		require.Equal(t, c.id, exchangeId(c.method, c.url), c.url)
	}
}

func TestDump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Portal", "caixa")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<ul><li>ok</li></ul>"))
	}))
	defer server.Close()

	output := &memoryOutput{}
	client := resty.New().SetBaseURL(server.URL)
	Dump(client, output)

	_, err := client.R().
		SetFormData(map[string]string{"hdnImov": "1444404512345"}).
		Post("/sistema/carregaListaImoveis.asp")
	require.NoError(t, err)

	require.Equal(t, []string{"POST_sistema_carregaListaImoveis.asp"}, output.ids)
	dump := output.contents[0]
	require.Contains(t, dump, "---- REQUEST ----")
	require.Contains(t, dump, "hdnImov=1444404512345")
	require.Contains(t, dump, "200 ")
	require.Contains(t, dump, "X-Portal: caixa")
	require.True(t, strings.HasSuffix(dump, "<ul><li>ok</li></ul>"))
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exchanges")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	output.Write("GET_a", "first")
	output.Write("GET_b", "second")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "0001_GET_a.txt", entries[0].Name())
	require.Equal(t, "0002_GET_b.txt", entries[1].Name())

	contents, err := os.ReadFile(filepath.Join(dir, "0002_GET_b.txt"))
	require.NoError(t, err)
	require.Equal(t, "second", string(contents))
}

func TestDumpRequestWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>landing</html>"))
	}))
	defer server.Close()

	output := &memoryOutput{}
	client := resty.New().SetBaseURL(server.URL)
	Dump(client, output)

	_, err := client.R().
		SetQueryParam("sltTipoBusca", "imoveis").
		Get("/sistema/busca-imovel.asp")
	require.NoError(t, err)

	require.Equal(t, []string{"GET_sistema_busca-imovel.asp"}, output.ids)
	require.Contains(t, output.contents[0], noBody)
	require.True(t, strings.HasSuffix(output.contents[0], "<html>landing</html>"))
}
