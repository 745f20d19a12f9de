package web

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func TestGetBadgePage(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `<html><body><div class="badge_row">hello</div></body></html>`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, testLogger())
	require.NoError(t, c.Init(76561198000000001, "null", "0"))

	doc, err := c.GetBadgePage(t.Context(), 3)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "/profiles/76561198000000001/badges", gotPath)
	assert.Equal(t, "l=english&p=3", gotQuery)

	row := FindFirst(doc, ByClass("badge_row"))
	require.NotNil(t, row)
	assert.Equal(t, "hello", Text(row))
}

func TestGetGameCardsPage(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `<html><body><span class="progress_info_bold">2 card drops remaining</span></body></html>`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, testLogger())
	require.NoError(t, c.Init(76561198000000001, "null", "0"))

	doc, err := c.GetGameCardsPage(t.Context(), 730)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "/profiles/76561198000000001/gamecards/730", gotPath)
}

func TestGetBadgePageStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, testLogger())
	require.NoError(t, c.Init(76561198000000001, "null", "0"))

	_, err := c.GetBadgePage(t.Context(), 1)
	assert.ErrorContains(t, err, "status 429")
}

func TestInitUnlocksParental(t *testing.T) {
	var unlocked bool
	var pin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/parental/ajaxunlock" {
			unlocked = true
			pin = r.FormValue("pin")
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, testLogger())
	require.NoError(t, c.Init(76561198000000001, "null", "1234"))

	assert.True(t, unlocked)
	assert.Equal(t, "1234", pin)
}

func TestGetTradeOffersFiltersActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/IEconService/GetTradeOffers/v1/", r.URL.Path)
		assert.Equal(t, "SECRET", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{
			"response": {
				"trade_offers_received": [
					{"tradeofferid": "100", "accountid_other": 7, "trade_offer_state": 2,
					 "items_to_receive": [{"appid": 753, "assetid": "999", "amount": "1"}]},
					{"tradeofferid": "101", "accountid_other": 8, "trade_offer_state": 3}
				]
			}
		}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, testLogger())
	require.NoError(t, c.Init(76561198000000001, "SECRET", "0"))

	offers, err := c.GetTradeOffers(t.Context())
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, uint64(100), offers[0].ID)
	assert.Equal(t, uint32(7), offers[0].OtherAccountID)
	require.Len(t, offers[0].ItemsToReceive, 1)
	assert.Equal(t, uint64(999), offers[0].ItemsToReceive[0].AssetID)
}

func TestGetTradeOffersWithoutAPIKey(t *testing.T) {
	c := NewHTTPClient("http://unused", "http://unused", testLogger())
	require.NoError(t, c.Init(76561198000000001, "null", "0"))

	offers, err := c.GetTradeOffers(t.Context())
	require.NoError(t, err)
	assert.Nil(t, offers)
}

func TestTradeOfferActions(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, testLogger())
	require.NoError(t, c.Init(76561198000000001, "SECRET", "0"))

	require.NoError(t, c.AcceptTradeOffer(t.Context(), 100))
	require.NoError(t, c.DeclineTradeOffer(t.Context(), 101))

	assert.Equal(t, []string{"/tradeoffer/100/accept", "/tradeoffer/101/decline"}, paths)
}
