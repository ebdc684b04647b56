package caixa

import (
	_ "embed"
)

var (
	//go:embed testdata/landing.html
	landingFixture []byte
	//go:embed testdata/cities_sp.html
	citiesFixture []byte
	//go:embed testdata/neighborhoods_sp.html
	neighborhoodsFixture []byte
	//go:embed testdata/search_page1.html
	searchPage1Fixture []byte
	//go:embed testdata/search_page2.html
	searchPage2Fixture []byte
	//go:embed testdata/challenge.html
	challengeFixture []byte
)
