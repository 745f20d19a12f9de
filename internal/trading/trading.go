// Package trading reacts to incoming trade offers: offers from the master
// and pure donations are accepted, everything else is declined.
package trading

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"cardfarm/internal/platform"
	"cardfarm/internal/web"
)

const checkTimeout = time.Minute

// Trading inspects a bot's incoming trade offers on demand.
type Trading struct {
	web    web.Client
	master platform.SteamID
	logger *log.Logger

	// One check at a time; notification bursts collapse onto it.
	mu sync.Mutex
}

// New wires trading for one bot.
func New(w web.Client, master platform.SteamID, logger *log.Logger) *Trading {
	return &Trading{
		web:    w,
		master: master,
		logger: logger.WithPrefix("trading"),
	}
}

// CheckOffers fetches the active incoming offers and resolves each one.
func (t *Trading) CheckOffers() {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	offers, err := t.web.GetTradeOffers(ctx)
	if err != nil {
		t.logger.Warn("trade offer check failed", "error", err)
		return
	}

	for _, offer := range offers {
		if t.shouldAccept(offer) {
			if err := t.web.AcceptTradeOffer(ctx, offer.ID); err != nil {
				t.logger.Warn("accept failed", "offer", offer.ID, "error", err)
				continue
			}
			t.logger.Info("accepted trade offer", "offer", offer.ID, "from", offer.OtherAccountID)
		} else {
			if err := t.web.DeclineTradeOffer(ctx, offer.ID); err != nil {
				t.logger.Warn("decline failed", "offer", offer.ID, "error", err)
				continue
			}
			t.logger.Info("declined trade offer", "offer", offer.ID, "from", offer.OtherAccountID)
		}
	}
}

// shouldAccept allows offers from the master and pure donations, where the
// bot gives nothing away.
func (t *Trading) shouldAccept(offer web.TradeOffer) bool {
	if t.master.IsValid() && offer.OtherAccountID == t.master.AccountID() {
		return true
	}
	return len(offer.ItemsToGive) == 0
}
