package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverscodes/codes-cli/internal/extract"
	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/pagestore"
	"github.com/reverscodes/codes-cli/internal/scorer"
	"github.com/reverscodes/codes-cli/internal/scrape"
	"github.com/reverscodes/codes-cli/internal/store"
)

const beebomPage = `<html><body>
<h2>Active Codes</h2>
<ul>
  <li><strong>UPDATE20</strong> (2x EXP for 20 minutes)</li>
  <li><code>BADGUYS2</code> - Unlocks the "Betty Beater" vehicle</li>
  <li>NASCAR100M - 200 Trophies</li>
</ul>
<h2>Expired Codes</h2>
<ul>
  <li>SPOOKY22 (Free Pumpkin Pet)</li>
  <li>OLDCODE99</li>
</ul>
</body></html>`

const fansitePage = `<html><body>
<h3>Working codes</h3>
<ul>
  <li>BADGUYS2 - Free Car</li>
  <li>GEMS4U2 - 500 Gems</li>
  <li>OLDCODE99 - 50 Gems</li>
</ul>
</body></html>`

const sitePage = `<html><body>
<p>Updated <span id="lastUpdatedDate">January 01, 2024</span></p>
<ul id="activeCodesList"><li>STALE1</li></ul>
<p><span id="expiredDate">January 01, 2024</span></p>
<ul id="expiredCodesList"></ul>
</body></html>
`

var (
	beebom  = model.Source{Name: "Beebom", URL: "https://beebom.com/blox-codes"}
	fansite = model.Source{Name: "Fansite", URL: "https://fans.example.com/blox"}
	down    = model.Source{Name: "Down", URL: "https://down.example.com/codes"}
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	page, ok := f.pages[url]
	if !ok {
		return "", &scrape.FetchError{URL: url, StatusCode: 503, Err: errors.New("service unavailable")}
	}
	return page, nil
}

type memStore struct {
	mu   sync.Mutex
	runs []model.Run
	fail bool
}

func (m *memStore) SaveRun(_ context.Context, run *model.Run) error {
	if m.fail {
		return errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = "run-" + run.Game
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) GetRun(context.Context, string) (*model.Run, error) { return nil, store.ErrNotFound }
func (m *memStore) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return m.runs, nil
}
func (m *memStore) GetCachedPage(context.Context, string) (string, bool, error) { return "", false, nil }
func (m *memStore) SetCachedPage(context.Context, string, string, time.Duration) error {
	return nil
}
func (m *memStore) DeleteExpiredPages(context.Context) (int, error) { return 0, nil }
func (m *memStore) Migrate(context.Context) error                   { return nil }
func (m *memStore) Close() error                                    { return nil }

type fixture struct {
	root    string
	fetcher *fakeFetcher
	store   *memStore
	now     time.Time
}

func newFixture(t *testing.T, pages ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	for _, p := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(root, p), []byte(sitePage), 0o644))
	}
	return &fixture{
		root: root,
		fetcher: &fakeFetcher{pages: map[string]string{
			beebom.URL:  beebomPage,
			fansite.URL: fansitePage,
		}},
		store: &memStore{},
		now:   time.Date(2025, time.August, 5, 9, 30, 0, 0, time.UTC),
	}
}

func (f *fixture) pipeline(opts Options) *Pipeline {
	opts.Now = func() time.Time { return f.now }
	return New(Deps{
		Fetcher: f.fetcher,
		Pages:   pagestore.NewUpdater(pagestore.NewFSStore(f.root)),
		Store:   f.store,
		Scoring: scorer.DefaultScoringConfig(),
	}, opts)
}

func (f *fixture) page(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, name))
	require.NoError(t, err)
	return string(data)
}

func bloxGame() model.Game {
	return model.Game{
		Key:     "blox-fruits",
		Name:    "Blox Fruits",
		Page:    "blox.html",
		Sources: []model.Source{beebom, fansite, down},
	}
}

func TestRunGame_Sections(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{MinActiveCodes: 3})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.NoError(t, err)

	assert.Equal(t, model.ModeSections, res.Mode)
	assert.Equal(t, []string{"UPDATE20", "BADGUYS2", "NASCAR100M", "GEMS4U2"}, model.Codes(res.Active))
	assert.Equal(t, []string{"SPOOKY22", "OLDCODE99"}, res.Expired)
	assert.False(t, res.UsedManual)
	assert.True(t, res.Updated)
	assert.Empty(t, res.Error)

	badguys := res.Active[1]
	assert.Equal(t, "Beebom", badguys.Source)
	assert.Equal(t, `Unlocks the "Betty Beater" vehicle`, badguys.Reward)
	assert.InDelta(t, 1.0, res.Active[0].QualityScore, 1e-9)
	assert.InDelta(t, 0.8, res.Active[3].QualityScore, 1e-9)
	for _, r := range res.Active {
		assert.Greater(t, r.ConfidenceScore, 0.0)
	}

	assert.Equal(t, 5, res.Report.Total)
	assert.Equal(t, 1, res.Report.DuplicatesRemoved)
	assert.Equal(t, 3, res.Stats.SourcesTotal)
	assert.Equal(t, 2, res.Stats.SourcesOK)
	assert.Equal(t, 4, res.Stats.Active)
	assert.Equal(t, 4, res.Stats.HighConfidence+res.Stats.MediumConfidence+res.Stats.LowConfidence)

	require.Len(t, res.Sources, 3)
	assert.Equal(t, 3, res.Sources[0].Active)
	assert.Equal(t, 2, res.Sources[0].Expired)
	assert.NotEmpty(t, res.Sources[2].Error)

	page := f.page(t, "blox.html")
	assert.Contains(t, page, `<span class="code">GEMS4U2</span>`)
	assert.Contains(t, page, `<li class="code-item expired">`)
	assert.Contains(t, page, "August 05, 2025")
	assert.NotContains(t, page, "STALE1")
	for _, code := range res.Expired {
		assert.NotContains(t, model.Codes(res.Active), code)
	}

	require.Len(t, f.store.runs, 1)
	run := f.store.runs[0]
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 4, run.ActiveCount)
	assert.Equal(t, 2, run.ExpiredCount)
	assert.Equal(t, res.Analysis.Score, run.QualityScore)
}

func TestRunGame_KeepsBareAlphaCodes(t *testing.T) {
	f := newFixture(t, "blox.html")
	f.fetcher.pages[beebom.URL] = `<html><body>
<h2>Active Codes</h2>
<ul>
  <li>SORRYFORDELAY - 500 Gems</li>
  <li>NEWCODE - 300 Coins</li>
  <li><strong>UPDATE20</strong> (2x EXP for 20 minutes)</li>
</ul>
</body></html>`
	game := bloxGame()
	game.Sources = []model.Source{beebom}

	res, err := f.pipeline(Options{}).RunGame(context.Background(), game)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"SORRYFORDELAY", "NEWCODE", "UPDATE20"}, model.Codes(res.Active))
	assert.Empty(t, res.Report.Invalid)
	assert.Contains(t, f.page(t, "blox.html"), `<span class="code">NEWCODE</span>`)
}

func TestRunGame_ManualCodesUseGeneralRegime(t *testing.T) {
	f := newFixture(t, "blox.html")
	f.fetcher.pages = map[string]string{}
	game := bloxGame()
	game.ManualCodes = []model.ManualCode{
		{Code: "GEMS4U2", Reward: "500 Gems"},
		{Code: "FREEBIES", Reward: "500 Gems"},
	}

	res, err := f.pipeline(Options{MinActiveCodes: 1}).RunGame(context.Background(), game)
	require.NoError(t, err)

	assert.True(t, res.UsedManual)
	assert.Equal(t, []string{"GEMS4U2"}, model.Codes(res.Active))
}

func TestRunGame_OutputRevalidates(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.NoError(t, err)
	require.NotEmpty(t, res.Active)

	raw := make([]model.RawRecord, len(res.Active))
	for i, r := range res.Active {
		code, rew, src := r.Code, r.Reward, r.Source
		raw[i] = model.RawRecord{Code: &code, Reward: &rew, Source: &src}
	}
	report := p.aggregator.Validate(raw)
	assert.Len(t, report.Valid, len(res.Active))
	assert.Empty(t, report.Invalid)
}

func TestRunGame_ConcurrentKeepsSourceOrder(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{Concurrency: 3})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.NoError(t, err)
	assert.Equal(t, []string{"UPDATE20", "BADGUYS2", "NASCAR100M", "GEMS4U2"}, model.Codes(res.Active))
	assert.Equal(t, []string{"Beebom", "Fansite", "Down"}, []string{
		res.Sources[0].Source.Name, res.Sources[1].Source.Name, res.Sources[2].Source.Name,
	})

	calls := append([]string(nil), f.fetcher.calls...)
	sort.Strings(calls)
	assert.Len(t, calls, 3)
}

func TestRunGame_ManualFallback(t *testing.T) {
	f := newFixture(t, "rivals.html")
	p := f.pipeline(Options{MinActiveCodes: 3})

	game := model.Game{
		Key:     "rivals",
		Page:    "rivals.html",
		Sources: []model.Source{down},
		ManualCodes: []model.ManualCode{
			{Code: "sub2gamer", Reward: "500 Gems"},
			{Code: "KITTGAMING5", Reward: "Free Spins"},
			{Code: "THE", Reward: "500 Gems"},
		},
	}
	res, err := p.RunGame(context.Background(), game)
	require.NoError(t, err)

	assert.True(t, res.UsedManual)
	assert.True(t, res.Updated)
	assert.ElementsMatch(t, []string{"SUB2GAMER", "KITTGAMING5"}, model.Codes(res.Active))
	for _, r := range res.Active {
		assert.Equal(t, ManualSource, r.Source)
		assert.Equal(t, model.MethodManual, r.Method)
	}
	assert.Equal(t, 0, res.Stats.SourcesOK)
	assert.Contains(t, res.Analysis.Issues, "Low source success rate")
	assert.Contains(t, f.page(t, "rivals.html"), "KITTGAMING5")
}

func TestRunGame_ManualSkipsExpired(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{MinActiveCodes: 10})

	game := bloxGame()
	game.ManualCodes = []model.ManualCode{{Code: "SPOOKY22", Reward: "Free Pumpkin Pet"}, {Code: "GEMS4U2", Reward: "500 Gems"}}
	res, err := p.RunGame(context.Background(), game)
	require.NoError(t, err)

	assert.True(t, res.UsedManual)
	assert.Equal(t, []string{"GEMS4U2"}, model.Codes(res.Active))
}

func TestRunGame_NothingFoundSkipsUpdate(t *testing.T) {
	f := newFixture(t, "empty.html")
	p := f.pipeline(Options{MinActiveCodes: 3})

	game := model.Game{Key: "empty", Page: "empty.html", Sources: []model.Source{down}}
	res, err := p.RunGame(context.Background(), game)
	require.NoError(t, err)

	assert.False(t, res.Updated)
	assert.Empty(t, res.Active)
	assert.Equal(t, sitePage, f.page(t, "empty.html"))
	require.Len(t, f.store.runs, 1)
	assert.Equal(t, model.RunStatusSkipped, f.store.runs[0].Status)
}

func TestRunGame_DryRun(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{DryRun: true})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Active)
	assert.False(t, res.Updated)
	assert.Equal(t, sitePage, f.page(t, "blox.html"))
}

func TestRunGame_Precise(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{Mode: model.ModePrecise})

	game := bloxGame()
	game.Sources = []model.Source{beebom}
	res, err := p.RunGame(context.Background(), game)
	require.NoError(t, err)

	assert.Equal(t, model.ModePrecise, res.Mode)
	require.NotEmpty(t, res.Active)
	assert.Contains(t, model.Codes(res.Active), "UPDATE20")
	for i := 1; i < len(res.Active); i++ {
		assert.GreaterOrEqual(t, res.Active[i-1].ConfidenceScore, res.Active[i].ConfidenceScore)
	}
	for _, r := range res.Active {
		assert.GreaterOrEqual(t, r.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, r.ConfidenceScore, 1.0)
	}
}

func TestRunGame_MaxCodes(t *testing.T) {
	f := newFixture(t, "blox.html")
	cfg := scorer.DefaultScoringConfig()
	cfg.MaxCodes = 2
	p := New(Deps{Fetcher: f.fetcher, Scoring: cfg}, Options{})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.NoError(t, err)
	assert.Equal(t, []string{"UPDATE20", "BADGUYS2"}, model.Codes(res.Active))
	assert.False(t, res.Updated, "no page store configured")
}

func TestRunGame_PageWriteFails(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(Options{})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.Error(t, err)
	assert.False(t, res.Updated)
	assert.NotEmpty(t, res.Error)
	require.Len(t, f.store.runs, 1)
	assert.Equal(t, model.RunStatusFailed, f.store.runs[0].Status)
}

func TestRunGame_StoreFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "blox.html")
	f.store.fail = true
	p := f.pipeline(Options{})

	res, err := p.RunGame(context.Background(), bloxGame())
	require.NoError(t, err)
	assert.True(t, res.Updated)
}

func TestRunGame_Cancelled(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.RunGame(ctx, bloxGame())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, res.Updated)
	assert.Empty(t, f.fetcher.calls)
}

func TestRunAll(t *testing.T) {
	f := newFixture(t, "blox.html")
	sitemap := filepath.Join(f.root, "sitemap.xml")
	require.NoError(t, os.WriteFile(sitemap,
		[]byte(`<urlset><url><loc>https://example.com/blox.html</loc><lastmod>2024-01-01</lastmod></url></urlset>`), 0o644))
	p := f.pipeline(Options{Sitemap: sitemap})

	missing := bloxGame()
	missing.Key = "missing-page"
	missing.Page = "nope.html"

	results := p.RunAll(context.Background(), []model.Game{bloxGame(), missing})
	require.Len(t, results, 2)
	assert.True(t, results[0].Updated)
	assert.False(t, results[1].Updated)
	assert.NotEmpty(t, results[1].Error)
	assert.Len(t, f.store.runs, 2)

	data, err := os.ReadFile(sitemap)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "<lastmod>2025-08-05</lastmod>"))
}

func TestRunAll_Cancelled(t *testing.T) {
	f := newFixture(t, "blox.html")
	p := f.pipeline(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, p.RunAll(ctx, []model.Game{bloxGame()}))
}

func TestMerge(t *testing.T) {
	a := sourceResult{found: extractResult(
		[]string{"AAA111", "BBB222"}, []string{"ccc333"})}
	b := sourceResult{found: extractResult(
		[]string{"CCC333", "DDD444", "AAA111"}, []string{"BBB222", "CCC333"})}

	active, expired := merge([]sourceResult{a, b})
	assert.Equal(t, []string{"CCC333", "BBB222"}, expired)
	var codes []string
	for _, c := range active {
		codes = append(codes, c.NormalizedCode)
	}
	assert.Equal(t, []string{"AAA111", "DDD444", "AAA111"}, codes)
}

func extractResult(active, expired []string) extract.Result {
	var res extract.Result
	for _, code := range active {
		res.Active = append(res.Active, model.NewCandidate(code, model.MethodSectionTarget, "500 Gems"))
	}
	res.Expired = expired
	return res
}
