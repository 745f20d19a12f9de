// Package web provides the authenticated HTTP capability a bot uses to read
// its badge pages and per-game card pages as parsed HTML trees.
package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"cardfarm/internal/platform"
)

// Client is the web capability consumed by the farmer and trading code.
type Client interface {
	// Init establishes the authenticated web session after a logon.
	Init(steamID platform.SteamID, apiKey, parentalPIN string) error

	// GetBadgePage fetches one page of the account's badges listing.
	GetBadgePage(ctx context.Context, page int) (*html.Node, error)

	// GetGameCardsPage fetches the per-game card drops page.
	GetGameCardsPage(ctx context.Context, appID uint32) (*html.Node, error)

	// GetTradeOffers lists active incoming trade offers.
	GetTradeOffers(ctx context.Context) ([]TradeOffer, error)

	// AcceptTradeOffer confirms one incoming offer.
	AcceptTradeOffer(ctx context.Context, id uint64) error

	// DeclineTradeOffer rejects one incoming offer.
	DeclineTradeOffer(ctx context.Context, id uint64) error
}

const requestTimeout = 30 * time.Second

// HTTPClient implements Client against the platform community endpoints.
type HTTPClient struct {
	baseURL string
	apiURL  string
	http    *http.Client
	logger  *log.Logger

	steamID platform.SteamID
	apiKey  string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a web client. baseURL roots the community pages,
// apiURL the econ web API.
func NewHTTPClient(baseURL, apiURL string, logger *log.Logger) *HTTPClient {
	jar, _ := cookiejar.New(nil)
	return &HTTPClient{
		baseURL: baseURL,
		apiURL:  apiURL,
		http: &http.Client{
			Timeout: requestTimeout,
			Jar:     jar,
		},
		logger: logger.WithPrefix("web"),
	}
}

// Init records session identity and, when a parental PIN is configured,
// unlocks the session with it.
func (c *HTTPClient) Init(steamID platform.SteamID, apiKey, parentalPIN string) error {
	c.steamID = steamID
	c.apiKey = apiKey

	if parentalPIN != "" && parentalPIN != "0" {
		if err := c.unlockParental(parentalPIN); err != nil {
			return fmt.Errorf("unlock parental: %w", err)
		}
	}

	c.logger.Debug("web session initialized", "steamID", steamID)
	return nil
}

// GetBadgePage fetches one page of the badges listing as a parsed tree.
func (c *HTTPClient) GetBadgePage(ctx context.Context, page int) (*html.Node, error) {
	endpoint := fmt.Sprintf("%s/profiles/%s/badges?l=english&p=%d", c.baseURL, c.steamID, page)
	return c.getHTML(ctx, endpoint)
}

// GetGameCardsPage fetches the per-game card drops page as a parsed tree.
func (c *HTTPClient) GetGameCardsPage(ctx context.Context, appID uint32) (*html.Node, error) {
	endpoint := fmt.Sprintf("%s/profiles/%s/gamecards/%d?l=english", c.baseURL, c.steamID, appID)
	return c.getHTML(ctx, endpoint)
}

func (c *HTTPClient) getHTML(ctx context.Context, endpoint string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", endpoint, err)
	}
	return doc, nil
}

func (c *HTTPClient) unlockParental(pin string) error {
	endpoint := c.baseURL + "/parental/ajaxunlock"
	resp, err := c.http.PostForm(endpoint, url.Values{"pin": {pin}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
