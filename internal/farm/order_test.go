package farm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	cases := []struct {
		in   string
		want Order
	}{
		{"", OrderUnordered},
		{"unordered", OrderUnordered},
		{"appids", OrderAppIDsAscending},
		{"AppIDsAscending", OrderAppIDsAscending},
		{"names", OrderNamesAscending},
		{"hours", OrderHoursAscending},
		{"HoursDescending", OrderHoursDescending},
	}
	for _, tc := range cases {
		got, err := ParseOrder(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseOrder("bogus")
	assert.Error(t, err)
}

func TestSortGames(t *testing.T) {
	games := func() []*Game {
		return []*Game{
			{AppID: 30, Name: "c", HoursPlayed: 1},
			{AppID: 10, Name: "a", HoursPlayed: 3},
			{AppID: 20, Name: "b", HoursPlayed: 2},
		}
	}

	t.Run("unordered keeps input order", func(t *testing.T) {
		g := games()
		sortGames(g, OrderUnordered)
		assert.Equal(t, uint32(30), g[0].AppID)
	})

	t.Run("appids ascending", func(t *testing.T) {
		g := games()
		sortGames(g, OrderAppIDsAscending)
		assert.Equal(t, uint32(10), g[0].AppID)
		assert.Equal(t, uint32(30), g[2].AppID)
	})

	t.Run("names ascending", func(t *testing.T) {
		g := games()
		sortGames(g, OrderNamesAscending)
		assert.Equal(t, "a", g[0].Name)
	})

	t.Run("hours descending", func(t *testing.T) {
		g := games()
		sortGames(g, OrderHoursDescending)
		assert.Equal(t, float32(3), g[0].HoursPlayed)
		assert.Equal(t, float32(1), g[2].HoursPlayed)
	})
}
