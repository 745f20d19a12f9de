package farm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"cardfarm/internal/web"
)

// PageSource is the slice of the web capability the farmer consumes.
type PageSource interface {
	GetBadgePage(ctx context.Context, page int) (*html.Node, error)
	GetGameCardsPage(ctx context.Context, appID uint32) (*html.Node, error)
}

// GlobalBlacklist holds app ids that never drop cards but still show badge
// rows; they are excluded regardless of per-bot configuration.
var GlobalBlacklist = map[uint32]bool{
	303700: true,
	335590: true,
	368020: true,
}

// misreportingAppIDs lists titles whose badge rows are known to report zero
// remaining drops while drops are still pending. Rows for these titles get a
// per-game re-check instead of being skipped outright.
var misreportingAppIDs = map[uint32]bool{
	440:    true,
	425280: true,
}

var (
	firstIntRe   = regexp.MustCompile(`\d+`)
	playtimeRe   = regexp.MustCompile(`[0-9.,]+`)
	dropDialogRe = regexp.MustCompile(`^card_drop_info_`)
)

const (
	byPlayingMarker = " by playing "
	noDropsMarker   = "You don't have any more drops remaining for "
)

type deferredCheck struct {
	appID uint32
	name  string
	hours float32
}

// checkPage extracts qualifying games from one badge page and adds them to
// the work set. Extraction is best-effort: a malformed row only skips that
// row. Rows for misreporting titles that claim zero drops are returned as
// deferred per-game checks.
func (f *Farmer) checkPage(doc *html.Node) []deferredCheck {
	var deferred []deferredCheck

	for _, row := range web.FindAll(doc, web.ByClass("badge_title_stats_content")) {
		appID, ok := parseRowAppID(row)
		if !ok {
			continue
		}
		if GlobalBlacklist[appID] || f.opts.Blacklist[appID] {
			f.logger.Debug("skipping blacklisted app", "appID", appID)
			continue
		}

		cards, cardsKnown := parseRowCardsRemaining(row)
		if cardsKnown && cards == 0 && !misreportingAppIDs[appID] {
			continue
		}
		if !cardsKnown {
			continue
		}

		hours := parseRowHours(row)

		name, ok := parseRowName(row)
		if !ok {
			continue
		}

		if cards == 0 {
			// Known misreporter: confirm against the per-game page
			// before trusting the zero.
			if earned, ok := parseRowCardsEarned(row); ok && earned > 0 {
				continue
			}
			deferred = append(deferred, deferredCheck{appID: appID, name: name, hours: hours})
			continue
		}

		f.addGame(&Game{
			AppID:          appID,
			Name:           name,
			HoursPlayed:    hours,
			CardsRemaining: cards,
		})
	}

	return deferred
}

// checkGame re-queries the per-game card page for a misreporting title and
// adds it to the work set when drops are actually pending.
func (f *Farmer) checkGame(ctx context.Context, appID uint32, name string, hours float32) {
	doc, err := f.web.GetGameCardsPage(ctx, appID)
	if err != nil {
		f.logger.Warn("per-game check failed", "appID", appID, "error", err)
		return
	}

	cards, ok := parseCardsRemaining(doc)
	if !ok || cards == 0 {
		return
	}

	f.addGame(&Game{
		AppID:          appID,
		Name:           name,
		HoursPlayed:    hours,
		CardsRemaining: cards,
	})
}

// shouldFarm resamples the per-game page and updates the game's remaining
// count. An error means the fetch failed and the caller should keep playing.
func (f *Farmer) shouldFarm(game *Game) (bool, error) {
	doc, err := f.web.GetGameCardsPage(context.Background(), game.AppID)
	if err != nil {
		return false, err
	}

	cards, ok := parseCardsRemaining(doc)
	if !ok {
		// Page fetched but no progress node: treat like a transient miss.
		return true, nil
	}

	f.mu.Lock()
	game.CardsRemaining = cards
	f.mu.Unlock()
	f.logger.Debug("drop status", "game", game.Name, "cardsRemaining", cards)
	return cards > 0, nil
}

// parseLastPage reads the badge pagination links and returns the highest
// page number, defaulting to one.
func parseLastPage(doc *html.Node) int {
	last := 1
	for _, link := range web.FindAll(doc, web.ByClass("pagelink")) {
		if n, err := strconv.Atoi(strings.TrimSpace(web.Text(link))); err == nil && n > last {
			last = n
		}
	}
	return last
}

// parseRowAppID pulls the app id out of the drop-info dialog id attribute,
// whose fifth underscore-separated segment carries it.
func parseRowAppID(row *html.Node) (uint32, bool) {
	node := web.FindFirst(row, func(n *html.Node) bool {
		return dropDialogRe.MatchString(web.Attr(n, "id"))
	})
	if node == nil {
		return 0, false
	}

	segments := strings.Split(web.Attr(node, "id"), "_")
	if len(segments) < 5 {
		return 0, false
	}
	id, err := strconv.ParseUint(segments[4], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// parseRowCardsRemaining reads the first integer of the progress text; text
// without a number means no drops remain.
func parseRowCardsRemaining(row *html.Node) (uint16, bool) {
	node := web.FindFirst(row, web.ByClass("progress_info_bold"))
	if node == nil {
		return 0, false
	}
	text := web.Text(node)
	match := firstIntRe.FindString(text)
	if match == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(match, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// parseRowCardsEarned reads the earned-count header when the row carries
// one; absent headers report not-ok.
func parseRowCardsEarned(row *html.Node) (uint16, bool) {
	node := web.FindFirst(row, web.ByClass("card_drop_info_header"))
	if node == nil {
		return 0, false
	}
	match := firstIntRe.FindString(web.Text(node))
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(match, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// parseRowHours reads the played-hours badge text; the numeric part uses
// invariant formatting so grouping commas are stripped before parsing.
func parseRowHours(row *html.Node) float32 {
	node := web.FindFirst(row, web.ByClass("badge_title_stats_playtime"))
	if node == nil {
		return 0
	}
	match := playtimeRe.FindString(web.Text(node))
	if match == "" {
		return 0
	}
	hours, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 32)
	if err != nil {
		return 0
	}
	return float32(hours)
}

// parseRowName extracts the game name from the row text: the phrase after
// " by playing " up to the final period, falling back to the no-drops
// variant of the sentence.
func parseRowName(row *html.Node) (string, bool) {
	text := web.Text(row)

	if idx := strings.Index(text, byPlayingMarker); idx >= 0 {
		rest := text[idx+len(byPlayingMarker):]
		if dot := strings.LastIndex(rest, "."); dot > 0 {
			return rest[:dot], true
		}
	}

	if idx := strings.Index(text, noDropsMarker); idx >= 0 {
		rest := text[idx+len(noDropsMarker):]
		if dot := strings.LastIndex(rest, "."); dot > 0 {
			return rest[:dot], true
		}
	}

	return "", false
}

// parseCardsRemaining reads the remaining-drops count from a per-game page.
func parseCardsRemaining(doc *html.Node) (uint16, bool) {
	node := web.FindFirst(doc, web.ByClass("progress_info_bold"))
	if node == nil {
		return 0, false
	}
	text := web.Text(node)
	match := firstIntRe.FindString(text)
	if match == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(match, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}
