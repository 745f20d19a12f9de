package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TradeOfferState values as reported by the econ service.
const (
	TradeOfferStateActive   = 2
	TradeOfferStateAccepted = 3
	TradeOfferStateDeclined = 7
)

// TradeOffer is one incoming offer from the econ service listing.
type TradeOffer struct {
	ID             uint64      `json:"tradeofferid,string"`
	OtherAccountID uint32      `json:"accountid_other"`
	State          int         `json:"trade_offer_state"`
	ItemsToGive    []TradeItem `json:"items_to_give"`
	ItemsToReceive []TradeItem `json:"items_to_receive"`
}

// TradeItem identifies one asset inside an offer.
type TradeItem struct {
	AppID   uint32 `json:"appid"`
	AssetID uint64 `json:"assetid,string"`
	Amount  uint32 `json:"amount,string"`
}

type tradeOffersResponse struct {
	Response struct {
		Received []TradeOffer `json:"trade_offers_received"`
	} `json:"response"`
}

// GetTradeOffers lists active incoming trade offers through the econ API.
// Requires an API key; returns nil offers when none is configured.
func (c *HTTPClient) GetTradeOffers(ctx context.Context) ([]TradeOffer, error) {
	if c.apiKey == "" || c.apiKey == "null" {
		c.logger.Debug("no api key, skipping trade offer check")
		return nil, nil
	}

	endpoint := fmt.Sprintf(
		"%s/IEconService/GetTradeOffers/v1/?key=%s&get_received_offers=1&active_only=1",
		c.apiURL, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trade offers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch trade offers: status %d", resp.StatusCode)
	}

	var parsed tradeOffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode trade offers: %w", err)
	}

	var offers []TradeOffer
	for _, offer := range parsed.Response.Received {
		if offer.State == TradeOfferStateActive {
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

// AcceptTradeOffer confirms one incoming offer.
func (c *HTTPClient) AcceptTradeOffer(ctx context.Context, id uint64) error {
	return c.postTradeAction(ctx, id, "accept")
}

// DeclineTradeOffer rejects one incoming offer.
func (c *HTTPClient) DeclineTradeOffer(ctx context.Context, id uint64) error {
	return c.postTradeAction(ctx, id, "decline")
}

func (c *HTTPClient) postTradeAction(ctx context.Context, id uint64, action string) error {
	endpoint := fmt.Sprintf("%s/tradeoffer/%d/%s", c.baseURL, id, action)
	form := url.Values{"tradeofferid": {fmt.Sprintf("%d", id)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = form.Encode()
	req.Header.Set("Referer", fmt.Sprintf("%s/tradeoffer/%d/", c.baseURL, id))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s offer %d: %w", action, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s offer %d: status %d", action, id, resp.StatusCode)
	}
	return nil
}
