package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/screen"
)

const sectionedPage = `<html><head><title>Codes</title><script>var CODE="SCRIPT123";</script></head>
<body>
<nav><ul><li>HOMEPAGE1</li></ul></nav>
<h2>Active Codes</h2>
<ul>
  <li><strong>UPDATE20</strong> (2x EXP for 20 minutes)</li>
  <li><code>BADGUYS2</code> - Unlocks the "Betty Beater" vehicle</li>
  <li>NASCAR100M - 200 Trophies</li>
  <li>Subscribe to our newsletter</li>
  <li><strong>UPDATE20</strong> duplicate entry</li>
</ul>
<h2>Expired Codes</h2>
<ul>
  <li>SPOOKY22 (Free Pumpkin Pet)</li>
  <li>OLDCODE99</li>
</ul>
</body></html>`

func parse(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Parse(raw)
	require.NoError(t, err)
	return doc
}

func TestSections_ActiveAndExpired(t *testing.T) {
	res := NewSections(nil).Extract(parse(t, sectionedPage), "https://example.com/codes")

	require.Len(t, res.Active, 3)
	assert.Equal(t, "UPDATE20", res.Active[0].NormalizedCode)
	assert.Equal(t, "2x EXP for 20 minutes", res.Active[0].Reward)
	assert.Equal(t, model.MethodSectionTarget, res.Active[0].Method)
	assert.Equal(t, "BADGUYS2", res.Active[1].NormalizedCode)
	assert.Equal(t, `Unlocks the "Betty Beater" vehicle`, res.Active[1].Reward)
	assert.Equal(t, "NASCAR100M", res.Active[2].NormalizedCode)
	assert.Equal(t, "200 Trophies", res.Active[2].Reward)

	assert.Equal(t, []string{"SPOOKY22", "OLDCODE99"}, res.Expired)
}

func TestSections_ExpiredWins(t *testing.T) {
	page := `<h3>Working codes</h3><ul><li>SPOOKY22</li><li>WINTER24X</li></ul>
<h3>Inactive codes</h3><ul><li>SPOOKY22</li></ul>`
	res := NewSections(nil).Extract(parse(t, page), "")

	require.Len(t, res.Active, 1)
	assert.Equal(t, "WINTER24X", res.Active[0].NormalizedCode)
	assert.Equal(t, model.DefaultReward, res.Active[0].Reward)
	assert.Equal(t, []string{"SPOOKY22"}, res.Expired)
}

func TestSections_NestedListItems(t *testing.T) {
	page := `<p><b>Current codes:</b></p><ol><div><li>GIFT-2024</li><li>GEMS4U2</li></div></ol>`
	res := NewSections(nil).Extract(parse(t, page), "")

	require.Len(t, res.Active, 1, "GIFT-2024 is rejected as a date")
	assert.Equal(t, "GEMS4U2", res.Active[0].NormalizedCode)
}

func TestSections_ItemTextOnlyWithoutSubElements(t *testing.T) {
	page := `<h2>Active Codes</h2><ul>
<li><strong>Note:</strong> TRADEUP77 works on mobile only</li>
<li>GEMS4U2 - 500 Gems</li>
</ul>`
	res := NewSections(nil).Extract(parse(t, page), "")

	require.Len(t, res.Active, 1)
	assert.Equal(t, "GEMS4U2", res.Active[0].NormalizedCode)

	fb := NewFallback(nil).Extract(parse(t, page), "")
	assert.Contains(t, codesOf(fb.Active), "TRADEUP77")
}

func codesOf(cands []model.CodeCandidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.NormalizedCode)
	}
	return out
}

func TestSections_NoHeadings(t *testing.T) {
	res := NewSections(nil).Extract(parse(t, `<ul><li>UPDATE20</li></ul>`), "")
	assert.Empty(t, res.Active)
	assert.Empty(t, res.Expired)
}

func TestSections_DenyListInjected(t *testing.T) {
	deny := screen.DefaultDenyList().Merge(screen.NewDenyList("UPDATE20"))
	res := NewSections(deny).Extract(parse(t, sectionedPage), "")
	for _, c := range res.Active {
		assert.NotEqual(t, "UPDATE20", c.NormalizedCode)
	}
}

func TestFallback_ScansLists(t *testing.T) {
	page := `<h2>How to redeem codes</h2>
<ol><li>Open the game</li><li>Press the Twitter button</li></ol>
<ul>
  <li>BLOXFRUITS_UPDATE_20: 20 minutes of 2x EXP</li>
  <li>SECRET_ADMIN (20 minutes of 2x EXP)</li>
  <li>` + strings.Repeat("LONGTEXT1 ", 30) + `</li>
</ul>`
	res := NewFallback(nil).Extract(parse(t, page), "")

	require.Len(t, res.Active, 2)
	assert.Equal(t, "BLOXFRUITS_UPDATE_20", res.Active[0].NormalizedCode)
	assert.Equal(t, "20 minutes of 2x EXP", res.Active[0].Reward)
	assert.Equal(t, model.MethodFallback, res.Active[0].Method)
	assert.Equal(t, "SECRET_ADMIN", res.Active[1].NormalizedCode)
	assert.Equal(t, "20 minutes of 2x EXP", res.Active[1].Reward)
}

func TestFallback_Cap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<ul>")
	for i := range 40 {
		fmt.Fprintf(&b, "<li>GIFT%dZQ</li>", i+10)
	}
	b.WriteString("</ul>")

	f := NewFallback(nil)
	res := f.Extract(parse(t, b.String()), "")
	assert.Len(t, res.Active, f.Cap)
}

func TestPrecise_Strategies(t *testing.T) {
	page := `<article>
<h2>All Blox Fruits codes</h2>
<ul><li>BLOXFRUIT25</li><li>SHORT1</li></ul>
<p>Also try KITTYGEMS7 for 50 Gems today.</p>
<span class="promo-code">MEGABOOST88</span>
<p>Dead: EXPIREDGIFT9</p>
</article>`
	res := NewPrecise(nil, screen.DefaultQualityGate()).Extract(parse(t, page), "https://example.com")

	byCode := map[string]model.CodeCandidate{}
	for _, c := range res.Active {
		byCode[c.NormalizedCode] = c
	}
	require.Contains(t, byCode, "BLOXFRUIT25")
	assert.Equal(t, model.MethodSectionTarget, byCode["BLOXFRUIT25"].Method)
	require.Contains(t, byCode, "KITTYGEMS7")
	assert.Equal(t, model.MethodTextPattern, byCode["KITTYGEMS7"].Method)
	assert.Equal(t, "50 Gems", byCode["KITTYGEMS7"].Reward)
	require.Contains(t, byCode, "MEGABOOST88")
	assert.NotContains(t, byCode, "SHORT1", "fails the quality gate")
	assert.Contains(t, res.Expired, "EXPIREDGIFT9")
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, "beebom", ProfileFor("https://beebom.com/roblox-blox-fruits-codes/").Name)
	assert.Equal(t, "progameguides", ProfileFor("https://progameguides.com/roblox/x").Name)
	assert.Equal(t, "ign", ProfileFor("https://www.ign.com/wikis/x").Name)
	assert.Equal(t, "default", ProfileFor("https://designer.example.com").Name)
	assert.Equal(t, "default", ProfileFor("::bad url").Name)
}

func TestClassifyHeading(t *testing.T) {
	assert.Equal(t, SectionActive, ClassifyHeading("All Active Codes (August)"))
	assert.Equal(t, SectionExpired, ClassifyHeading("Inactive codes"))
	assert.Equal(t, SectionExpired, ClassifyHeading("Expired codes"))
	assert.Equal(t, SectionNone, ClassifyHeading("How to redeem"))
}

func TestDocumentLines(t *testing.T) {
	doc := parse(t, `<div>first <b>line</b></div><p>second</p><script>hidden()</script>`)
	assert.Equal(t, []string{"first line", "second"}, doc.Lines())
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"UPDATE20", "-", "2X", "EXP"}, Tokens("update20 - 2x exp"))
}
