package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetTextLines(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<li>
			<strong>APARTAMENTO  |  R$ 100,00</strong>
			<script>var x = 1;</script>
			<span>Número do item: 2<br>RUA A,&nbsp;N. 5</span>
		</li>`))
	require.NoError(t, err)

	lines := GetTextLines(doc.Find("li").Nodes[0])
	require.Equal(t, []string{
		"APARTAMENTO | R$ 100,00",
		"Número do item: 2",
		"RUA A, N. 5",
	}, lines)
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b c", CleanText("  a\t\tb\n c  "))
	require.Equal(t, "", CleanText(" \n "))
}
