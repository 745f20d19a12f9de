// Package farm implements the per-bot card-drop farming scheduler: the badge
// scan that builds the work set, the simple and restricted play-loop
// algorithms, and the cooperative stop/pause machinery around them.
package farm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"
)

// Session is the slice of the owning bot the farmer drives.
type Session interface {
	// Name identifies the bot in logs and summaries.
	Name() string

	// ReadyToFarm reports whether the session can play games right now.
	ReadyToFarm() bool

	// PlayGames reports the given app ids as played; no ids stops playing.
	PlayGames(appIDs ...uint32)

	// OnFarmingFinished fires after a round loop drains the work set.
	OnFarmingFinished(farmedSomething bool)

	// RequestLootCheck asks the bot to inspect new items while not farming.
	RequestLootCheck()
}

// Defaults for the play-loop timing. Tests and the process config override
// them through Options.
const (
	DefaultFarmingDelay         = 15 * time.Minute
	DefaultMaxFarmingTime       = 10 * time.Hour
	DefaultHoursToBump          = 2.0
	DefaultMaxGamesConcurrently = 32

	stopPollAttempts = 5
	stopPollInterval = time.Second

	// minutesPerCard feeds the remaining-time estimate logged at round start.
	minutesPerCard = 30 * time.Minute
)

// Options configures a Farmer. Zero values fall back to the defaults above.
type Options struct {
	CardDropsRestricted  bool
	Blacklist            map[uint32]bool
	Order                Order
	FarmingDelay         time.Duration
	MaxFarmingTime       time.Duration
	HoursToBump          float32
	MaxGamesConcurrently int
	Clock                quartz.Clock
}

func (o Options) withDefaults() Options {
	if o.FarmingDelay <= 0 {
		o.FarmingDelay = DefaultFarmingDelay
	}
	if o.MaxFarmingTime <= 0 {
		o.MaxFarmingTime = DefaultMaxFarmingTime
	}
	if o.HoursToBump <= 0 {
		o.HoursToBump = DefaultHoursToBump
	}
	if o.MaxGamesConcurrently <= 0 {
		o.MaxGamesConcurrently = DefaultMaxGamesConcurrently
	}
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	return o
}

// Farmer owns the farming work set and the round loop for one bot.
// StartFarming and StopFarming are mutually exclusive through a binary
// semaphore; the round loop itself runs outside the semaphore and is stopped
// cooperatively via keepFarming plus the reset event.
type Farmer struct {
	session Session
	web     PageSource
	logger  *log.Logger
	opts    Options
	clock   quartz.Clock

	mu           sync.Mutex
	gamesToFarm  []*Game
	currentGames []*Game

	nowFarming  atomic.Bool
	keepFarming atomic.Bool
	paused      atomic.Bool
	stickyPause atomic.Bool

	sem   chan struct{}
	reset *resetEvent
}

// NewFarmer wires a farmer to its session and web page source.
func NewFarmer(session Session, web PageSource, logger *log.Logger, opts Options) *Farmer {
	opts = opts.withDefaults()
	return &Farmer{
		session: session,
		web:     web,
		logger:  logger.WithPrefix("farmer").With("bot", session.Name()),
		opts:    opts,
		clock:   opts.Clock,
		sem:     make(chan struct{}, 1),
		reset:   newResetEvent(),
	}
}

// NowFarming reports whether a round loop is active.
func (f *Farmer) NowFarming() bool {
	return f.nowFarming.Load()
}

// Paused reports whether farming is paused.
func (f *Farmer) Paused() bool {
	return f.paused.Load()
}

// GamesToFarm returns a snapshot of the current work set.
func (f *Farmer) GamesToFarm() []*Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Game, len(f.gamesToFarm))
	copy(out, f.gamesToFarm)
	return out
}

// CurrentGamesFarming returns a snapshot of the games played right now.
func (f *Farmer) CurrentGamesFarming() []*Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Game, len(f.currentGames))
	copy(out, f.currentGames)
	return out
}

// Summary renders a one-line farming status for chat replies.
func (f *Farmer) Summary() string {
	if f.paused.Load() {
		return "Farming is paused"
	}
	if !f.nowFarming.Load() {
		return "Not farming anything"
	}

	f.mu.Lock()
	current := len(f.currentGames)
	total := len(f.gamesToFarm)
	cards := 0
	for _, g := range f.gamesToFarm {
		cards += int(g.CardsRemaining)
	}
	f.mu.Unlock()

	return fmt.Sprintf("Farming %d/%d games, %d card drops remaining (~%s left)",
		current, total, cards, f.estimateRemaining().Round(time.Minute))
}

// StartFarming scans the badge pages and, when anything qualifies, runs the
// round loop to completion on the calling goroutine. Pre-checks make it a
// cheap no-op when a round is already active, farming is paused, or the
// session cannot play.
func (f *Farmer) StartFarming() {
	if f.nowFarming.Load() || f.paused.Load() || !f.session.ReadyToFarm() {
		return
	}

	f.sem <- struct{}{}

	// Recheck under the semaphore: a concurrent round may have started
	// while we queued.
	if f.nowFarming.Load() || f.paused.Load() || !f.session.ReadyToFarm() {
		<-f.sem
		return
	}

	if !f.isAnythingToFarm(context.Background()) {
		<-f.sem
		f.logger.Info("nothing to farm")
		f.session.OnFarmingFinished(false)
		return
	}

	f.logger.Info("farming starts",
		"games", f.gameCount(),
		"cardsRemaining", f.cardsRemaining(),
		"timeRemaining", f.estimateRemaining())

	f.keepFarming.Store(true)
	f.nowFarming.Store(true)
	<-f.sem

	success := f.farm()
	f.nowFarming.Store(false)

	if success {
		f.logger.Info("farming finished")
		f.session.OnFarmingFinished(true)
	}
}

// StopFarming requests a cooperative stop and waits up to five seconds for
// the round loop to observe it. On timeout the farming flag is forced clear
// with a warning.
func (f *Farmer) StopFarming() {
	f.sem <- struct{}{}
	defer func() { <-f.sem }()

	if !f.nowFarming.Load() {
		return
	}

	f.keepFarming.Store(false)
	f.reset.Set()

	for i := 0; i < stopPollAttempts; i++ {
		if !f.nowFarming.Load() {
			return
		}
		timer := f.clock.NewTimer(stopPollInterval)
		<-timer.C
	}

	f.logger.Warn("farming loop did not stop in time, forcing the flag")
	f.nowFarming.Store(false)
}

// Pause stops farming and keeps it stopped. A sticky pause survives
// automatic resume attempts and is only cleared by an explicit user action.
func (f *Farmer) Pause(sticky bool) {
	f.paused.Store(true)
	if sticky {
		f.stickyPause.Store(true)
	}
	if f.nowFarming.Load() {
		f.StopFarming()
	}
}

// Resume lifts a pause and kicks off a round. Returns false when a sticky
// pause blocks a non-user resume.
func (f *Farmer) Resume(userAction bool) bool {
	if f.stickyPause.Load() && !userAction {
		f.logger.Info("not resuming, sticky pause is in effect")
		return false
	}
	f.stickyPause.Store(false)
	f.paused.Store(false)
	if !f.nowFarming.Load() {
		go f.StartFarming()
	}
	return true
}

// OnNewGameAdded reacts to a library change. When idle it starts farming;
// under the restricted algorithm it restarts the round so the multi-game
// planning can include the new title while it is still below the bump
// threshold.
func (f *Farmer) OnNewGameAdded() {
	if !f.nowFarming.Load() {
		go f.StartFarming()
		return
	}

	if f.opts.CardDropsRestricted && f.anyGameBelowBump() {
		go func() {
			f.StopFarming()
			f.StartFarming()
		}()
	}
}

// OnNewItemsNotification shortens the current play window so fresh drop
// counts are observed promptly; while idle it delegates a loot check.
func (f *Farmer) OnNewItemsNotification() {
	if f.nowFarming.Load() {
		f.reset.Set()
		return
	}
	f.session.RequestLootCheck()
}

// OnDisconnected stops farming without blocking the callback pump.
func (f *Farmer) OnDisconnected() {
	go f.StopFarming()
}

// farm runs the round loop until the work set drains or a stop aborts it.
func (f *Farmer) farm() bool {
	for {
		f.reset.Reset()

		if f.opts.CardDropsRestricted {
			if !f.farmRestricted() {
				return false
			}
		} else {
			if !f.farmSimple() {
				return false
			}
		}

		if !f.keepFarming.Load() {
			return false
		}
		if !f.isAnythingToFarm(context.Background()) {
			return true
		}
	}
}

// farmSimple drains the set front-to-back, one title at a time.
func (f *Farmer) farmSimple() bool {
	for {
		game := f.firstGame()
		if game == nil {
			return true
		}
		if !f.farmSolo(game) {
			return false
		}
	}
}

// farmRestricted implements the two-phase algorithm for accounts that only
// drop cards after the bump threshold: titles past the threshold are farmed
// solo, everything else is multiplexed until the hottest title crosses it.
func (f *Farmer) farmRestricted() bool {
	for {
		games := f.GamesToFarm()
		if len(games) == 0 {
			return true
		}

		var solo []*Game
		for _, g := range games {
			if g.HoursPlayed >= f.opts.HoursToBump {
				solo = append(solo, g)
			}
		}
		if len(games) == 1 {
			solo = games
		}

		if len(solo) > 0 {
			for _, g := range solo {
				if !f.farmSolo(g) {
					return false
				}
			}
			continue
		}

		sortGames(games, OrderHoursDescending)
		picked := games
		if len(picked) > f.opts.MaxGamesConcurrently {
			picked = picked[:f.opts.MaxGamesConcurrently]
		}
		if !f.farmMultiple(picked) {
			return false
		}
	}
}

// farmSolo plays one title until its drops drain, the per-title time budget
// runs out, or a stop preempts the wait. Returns keepFarming so the caller
// can distinguish completion from abort.
func (f *Farmer) farmSolo(game *Game) bool {
	f.setCurrentGames(game)
	f.logger.Info("now farming", "game", game.String())
	f.session.PlayGames(game.AppID)

	deadline := f.clock.Now().Add(f.opts.MaxFarmingTime)
	for f.keepFarming.Load() && f.clock.Now().Before(deadline) {
		elapsed := f.waitForReset(f.opts.FarmingDelay)
		if !f.keepFarming.Load() {
			break
		}

		f.bumpHours(elapsed, game)

		stillFarmable, err := f.shouldFarm(game)
		if err != nil {
			// Transient web failure, keep playing.
			f.logger.Debug("drop re-check failed, continuing", "game", game.Name, "error", err)
			continue
		}
		if !stillFarmable {
			break
		}
	}

	f.clearCurrentGames()

	if f.keepFarming.Load() {
		f.removeGame(game.AppID)
		f.logger.Info("done farming", "game", game.String())
	}
	return f.keepFarming.Load()
}

// farmMultiple plays a batch of titles together until the most-played one
// reaches the bump threshold.
func (f *Farmer) farmMultiple(games []*Game) bool {
	f.setCurrentGames(games...)
	f.logger.Info("now farming multiple", "count", len(games), "maxHours", maxHours(games))

	ids := make([]uint32, len(games))
	for i, g := range games {
		ids[i] = g.AppID
	}
	f.session.PlayGames(ids...)

	for f.keepFarming.Load() && maxHours(games) < f.opts.HoursToBump {
		elapsed := f.waitForReset(f.opts.FarmingDelay)
		if !f.keepFarming.Load() {
			break
		}
		f.bumpHours(elapsed, games...)
	}

	f.clearCurrentGames()
	return f.keepFarming.Load()
}

// waitForReset blocks until the reset event fires or the delay elapses, and
// returns how long it actually waited.
func (f *Farmer) waitForReset(delay time.Duration) time.Duration {
	start := f.clock.Now()
	timer := f.clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-f.reset.Done():
		f.reset.Reset()
	case <-timer.C:
	}
	return f.clock.Since(start)
}

func (f *Farmer) firstGame() *Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.gamesToFarm) == 0 {
		return nil
	}
	return f.gamesToFarm[0]
}

func (f *Farmer) addGame(game *Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.gamesToFarm {
		if g.AppID == game.AppID {
			return
		}
	}
	f.gamesToFarm = append(f.gamesToFarm, game)
}

func (f *Farmer) removeGame(appID uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, g := range f.gamesToFarm {
		if g.AppID == appID {
			f.gamesToFarm = append(f.gamesToFarm[:i], f.gamesToFarm[i+1:]...)
			return
		}
	}
}

func (f *Farmer) setCurrentGames(games ...*Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentGames = append([]*Game(nil), games...)
}

func (f *Farmer) clearCurrentGames() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentGames = nil
}

func (f *Farmer) gameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gamesToFarm)
}

func (f *Farmer) cardsRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, g := range f.gamesToFarm {
		total += int(g.CardsRemaining)
	}
	return total
}

// bumpHours credits play time to games under the lock; Summary and the
// estimate read the same fields concurrently.
func (f *Farmer) bumpHours(elapsed time.Duration, games ...*Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range games {
		g.HoursPlayed += float32(elapsed.Hours())
	}
}

func (f *Farmer) anyGameBelowBump() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.gamesToFarm {
		if g.HoursPlayed < f.opts.HoursToBump {
			return true
		}
	}
	return false
}

// estimateRemaining is a coarse forecast: half an hour per pending card,
// plus the play time still needed to bump every title on restricted
// accounts.
func (f *Farmer) estimateRemaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	var total time.Duration
	for _, g := range f.gamesToFarm {
		total += time.Duration(g.CardsRemaining) * minutesPerCard
		if f.opts.CardDropsRestricted && g.HoursPlayed < f.opts.HoursToBump {
			deficit := f.opts.HoursToBump - g.HoursPlayed
			total += time.Duration(float64(deficit) * float64(time.Hour))
		}
	}
	return total
}

// isAnythingToFarm rebuilds the work set from the badge pages. Page one is
// fetched first to learn the page count, the rest fan out concurrently.
func (f *Farmer) isAnythingToFarm(ctx context.Context) bool {
	doc, err := f.web.GetBadgePage(ctx, 1)
	if err != nil {
		f.logger.Warn("badge scan failed", "error", err)
		return false
	}

	f.mu.Lock()
	f.gamesToFarm = nil
	f.mu.Unlock()

	lastPage := parseLastPage(doc)

	var deferred []deferredCheck
	deferred = append(deferred, f.checkPage(doc)...)

	if lastPage > 1 {
		var dmu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for page := 2; page <= lastPage; page++ {
			g.Go(func() error {
				pageDoc, err := f.web.GetBadgePage(gctx, page)
				if err != nil {
					f.logger.Warn("badge page fetch failed", "page", page, "error", err)
					return nil
				}
				d := f.checkPage(pageDoc)
				dmu.Lock()
				deferred = append(deferred, d...)
				dmu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	if len(deferred) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, d := range deferred {
			g.Go(func() error {
				f.checkGame(gctx, d.appID, d.name, d.hours)
				return nil
			})
		}
		_ = g.Wait()
	}

	f.mu.Lock()
	sortGames(f.gamesToFarm, f.opts.Order)
	n := len(f.gamesToFarm)
	f.mu.Unlock()
	return n > 0
}

func maxHours(games []*Game) float32 {
	var max float32
	for _, g := range games {
		if g.HoursPlayed > max {
			max = g.HoursPlayed
		}
	}
	return max
}
