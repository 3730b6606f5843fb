package pagestore

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reverscodes/codes-cli/internal/model"
)

// Anchors rewritten on a game page.
const (
	AnchorActive      = "activeCodesList"
	AnchorExpired     = "expiredCodesList"
	AnchorUpdatedDate = "lastUpdatedDate"
	AnchorUpdated     = "lastUpdated"
	AnchorExpiredDate = "expiredDate"
)

// DateLayout formats the dates shown on pages.
const DateLayout = "January 02, 2006"

// UpdateReport lists which anchors were rewritten and which were absent.
type UpdateReport struct {
	Written []string
	Missing []string
}

// Updater writes code lists and dates into game pages.
type Updater struct {
	Store Store
}

// NewUpdater creates an Updater over store.
func NewUpdater(store Store) *Updater {
	return &Updater{Store: store}
}

// Update rewrites the code lists and date spans of page. Missing anchors
// are skipped with a warning; it fails when no anchor could be written.
func (u *Updater) Update(ctx context.Context, page string, active []model.CodeRecord, expired []string, now time.Time) (UpdateReport, error) {
	date := now.Format(DateLayout)
	regions := []struct{ anchor, html string }{
		{AnchorActive, RenderActive(active)},
		{AnchorExpired, RenderExpired(expired)},
		{AnchorUpdatedDate, date},
		{AnchorUpdated, date},
		{AnchorExpiredDate, date},
	}

	var rep UpdateReport
	for _, r := range regions {
		err := u.Store.WriteFragment(ctx, page, r.anchor, r.html)
		switch {
		case err == nil:
			rep.Written = append(rep.Written, r.anchor)
		case errors.Is(err, ErrAnchorNotFound):
			zap.L().Warn("pagestore: region missing, skipped",
				zap.String("page", page),
				zap.String("anchor", r.anchor),
			)
			rep.Missing = append(rep.Missing, r.anchor)
		default:
			return rep, eris.Wrapf(err, "pagestore: update %s", page)
		}
	}
	if len(rep.Written) == 0 {
		return rep, eris.Errorf("pagestore: no known regions in %s", page)
	}
	return rep, nil
}

// RenderActive renders the inner HTML of the active codes list.
func RenderActive(records []model.CodeRecord) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, r := range records {
		code := html.EscapeString(r.Code)
		reward := r.Reward
		if reward == "" {
			reward = model.DefaultReward
		}
		b.WriteString("          <li class=\"code-item\">\n")
		fmt.Fprintf(&b, "            <span class=\"code\">%s</span>\n", code)
		fmt.Fprintf(&b, "            <span class=\"reward\">%s</span>\n", html.EscapeString(reward))
		fmt.Fprintf(&b, "            <button class=\"copy-btn\" onclick=\"copyCode('%s')\">Copy</button>\n", jsQuote(code))
		b.WriteString("          </li>\n")
	}
	b.WriteString("        ")
	return b.String()
}

// RenderExpired renders the inner HTML of the expired codes list.
func RenderExpired(codes []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, c := range codes {
		b.WriteString("          <li class=\"code-item expired\">\n")
		fmt.Fprintf(&b, "            <span class=\"code\">%s</span>\n", html.EscapeString(c))
		b.WriteString("            <span class=\"reward\">Expired</span>\n")
		b.WriteString("            <button class=\"copy-btn\" disabled>Expired</button>\n")
		b.WriteString("          </li>\n")
	}
	b.WriteString("        ")
	return b.String()
}

// jsQuote drops characters that would end a single-quoted JS string.
func jsQuote(s string) string {
	return strings.NewReplacer(`\`, "", `'`, "").Replace(s)
}
