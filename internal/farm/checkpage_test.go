package farm

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func newBareFarmer(t *testing.T, opts Options) *Farmer {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	return NewFarmer(newFakeSession(), newFakePages(false), logger, opts)
}

const badgePageFixture = `
<html><body>
	<div class="badge_title_stats_content">
		<div id="card_drop_info_gamebadge_730_2_0"></div>
		<span class="progress_info_bold">3 card drops remaining</span>
		<div class="badge_title_stats_playtime">12.5 hrs on record</div>
		<div>You can get 3 more card drops by playing Counter Game.</div>
	</div>
	<div class="badge_title_stats_content">
		<div id="card_drop_info_gamebadge_303700_2_0"></div>
		<span class="progress_info_bold">2 card drops remaining</span>
		<div class="badge_title_stats_playtime">1.0 hrs on record</div>
		<div>You can get 2 more card drops by playing Blacklisted Game.</div>
	</div>
	<div class="badge_title_stats_content">
		<div id="card_drop_info_gamebadge_620_2_0"></div>
		<span class="progress_info_bold">No card drops remaining</span>
		<div class="badge_title_stats_playtime">40.0 hrs on record</div>
		<div>You don't have any more drops remaining for Finished Game.</div>
	</div>
	<div class="badge_title_stats_content">
		<div id="card_drop_info_gamebadge_440_2_0"></div>
		<span class="progress_info_bold">No card drops remaining</span>
		<div class="badge_title_stats_playtime">2,345.6 hrs on record</div>
		<div>You don't have any more drops remaining for Misreporting Game.</div>
	</div>
	<div class="badge_title_stats_content">
		<span class="progress_info_bold">5 card drops remaining</span>
		<div>A row with no drop dialog never yields an app id.</div>
	</div>
</body></html>`

func TestCheckPage(t *testing.T) {
	f := newBareFarmer(t, Options{})

	deferred := f.checkPage(mustParse(t, badgePageFixture))

	games := f.GamesToFarm()
	require.Len(t, games, 1)
	assert.Equal(t, uint32(730), games[0].AppID)
	assert.Equal(t, "Counter Game", games[0].Name)
	assert.Equal(t, uint16(3), games[0].CardsRemaining)
	assert.InDelta(t, 12.5, float64(games[0].HoursPlayed), 0.001)

	// The zero-drop misreporter gets a per-game re-check, with the grouping
	// comma stripped from its hours.
	require.Len(t, deferred, 1)
	assert.Equal(t, uint32(440), deferred[0].appID)
	assert.Equal(t, "Misreporting Game", deferred[0].name)
	assert.InDelta(t, 2345.6, float64(deferred[0].hours), 0.001)
}

func TestCheckPageBotBlacklist(t *testing.T) {
	f := newBareFarmer(t, Options{Blacklist: map[uint32]bool{730: true}})

	f.checkPage(mustParse(t, badgePageFixture))

	assert.Empty(t, f.GamesToFarm())
}

func TestCheckPageMisreporterWithEarnedHeader(t *testing.T) {
	page := `
<html><body>
	<div class="badge_title_stats_content">
		<div id="card_drop_info_gamebadge_440_2_0"></div>
		<div class="card_drop_info_header">5 card drops earned</div>
		<span class="progress_info_bold">No card drops remaining</span>
		<div>You don't have any more drops remaining for Misreporting Game.</div>
	</div>
</body></html>`

	f := newBareFarmer(t, Options{})
	deferred := f.checkPage(mustParse(t, page))

	// Earned drops on record confirm the zero, so no re-check is queued.
	assert.Empty(t, deferred)
	assert.Empty(t, f.GamesToFarm())
}

func TestParseLastPage(t *testing.T) {
	t.Run("paginated", func(t *testing.T) {
		page := `<html><body>
			<a class="pagelink">1</a>
			<a class="pagelink">2</a>
			<a class="pagelink">7</a>
			<a class="pagelink">2</a>
		</body></html>`
		assert.Equal(t, 7, parseLastPage(mustParse(t, page)))
	})

	t.Run("single page", func(t *testing.T) {
		assert.Equal(t, 1, parseLastPage(mustParse(t, `<html><body></body></html>`)))
	})
}

func TestShouldFarmUpdatesCount(t *testing.T) {
	session := newFakeSession()
	pages := newFakePages(false)
	pages.addGame(730, 2, 0)

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	f := NewFarmer(session, pages, logger, Options{})

	game := &Game{AppID: 730, Name: "Counter Game", CardsRemaining: 9}
	still, err := f.shouldFarm(game)
	require.NoError(t, err)
	assert.True(t, still)
	assert.Equal(t, uint16(2), game.CardsRemaining)
}

func TestIsAnythingToFarmSorts(t *testing.T) {
	session := newFakeSession()
	pages := newFakePages(false)
	pages.addGame(30, 1, 3.0)
	pages.addGame(10, 1, 1.0)
	pages.addGame(20, 1, 2.0)

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	f := NewFarmer(session, pages, logger, Options{Order: OrderHoursDescending})

	require.True(t, f.isAnythingToFarm(t.Context()))

	games := f.GamesToFarm()
	require.Len(t, games, 3)
	assert.Equal(t, uint32(30), games[0].AppID)
	assert.Equal(t, uint32(10), games[2].AppID)
}
