package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reverscodes/codes-cli/internal/config"
	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/scorer"
)

const sourcePage = `<html><body>
<h2>Active Codes</h2>
<ul>
  <li><strong>UPDATE20</strong> (2x EXP for 20 minutes)</li>
  <li><code>BADGUYS2</code> - Unlocks the "Betty Beater" vehicle</li>
  <li>NASCAR100M - 200 Trophies</li>
</ul>
<h2>Expired Codes</h2>
<ul>
  <li>SPOOKY22 (Free Pumpkin Pet)</li>
</ul>
</body></html>`

const tipPage = `<html><body>
<p>Updated <span id="lastUpdatedDate">January 01, 2024</span></p>
<ul id="activeCodesList"><li>STALE1</li></ul>
<ul id="expiredCodesList"></ul>
</body></html>
`

// testSite serves a code source over HTTP and lays out a site directory
// with one tip page. It sets the global cfg to use both plus a SQLite store.
type testSite struct {
	root   string
	server *httptest.Server
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blox-fruits-codes" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(sourcePage))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "blox-fruits.html"), []byte(tipPage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sitemap.xml"),
		[]byte("<urlset><url><loc>https://example.com/blox-fruits.html</loc><lastmod>2024-01-01</lastmod></url></urlset>"), 0o644))

	cfg = testConfig(root)
	cfg.Games = []model.Game{{
		Key:     "blox-fruits",
		Name:    "Blox Fruits",
		Page:    "blox-fruits.html",
		Sources: []model.Source{{Name: "Beebom", URL: srv.URL + "/blox-fruits-codes"}},
	}}
	return &testSite{root: root, server: srv}
}

func (s *testSite) page(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.root, "blox-fruits.html"))
	require.NoError(t, err)
	return string(data)
}

// testConfig returns a valid config rooted at dir with fast scrape settings.
func testConfig(dir string) *config.Config {
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "codes.db")
	c.Log.Level = "error"
	c.Log.Format = "json"
	c.Server.Port = 8080
	c.Server.IntervalHours = 6
	c.Scrape.TimeoutSecs = 5
	c.Scrape.Retries = 1
	c.Scrape.Concurrency = 1
	c.Scrape.RatePerSec = 50
	c.Scrape.MaxBodyBytes = 1 << 20
	c.Scrape.ProbeTimeout = 5
	c.Scoring = scorer.DefaultScoringConfig()
	c.Pipeline.Mode = string(model.ModeSections)
	c.Pipeline.MinActiveCodes = 0
	c.Site.Root = dir
	c.Site.Sitemap = "sitemap.xml"
	return c
}
