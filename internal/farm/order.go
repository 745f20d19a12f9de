package farm

import (
	"fmt"
	"sort"
	"strings"
)

// Order determines how GamesToFarm is sorted before a round.
type Order int

const (
	OrderUnordered Order = iota
	OrderAppIDsAscending
	OrderNamesAscending
	OrderHoursAscending
	OrderHoursDescending
)

// ParseOrder maps a config string to an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "", "unordered":
		return OrderUnordered, nil
	case "appids", "appidsascending":
		return OrderAppIDsAscending, nil
	case "names", "namesascending":
		return OrderNamesAscending, nil
	case "hours", "hoursascending":
		return OrderHoursAscending, nil
	case "hoursdescending":
		return OrderHoursDescending, nil
	default:
		return OrderUnordered, fmt.Errorf("unknown farming order %q", s)
	}
}

func sortGames(games []*Game, order Order) {
	switch order {
	case OrderAppIDsAscending:
		sort.SliceStable(games, func(i, j int) bool { return games[i].AppID < games[j].AppID })
	case OrderNamesAscending:
		sort.SliceStable(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	case OrderHoursAscending:
		sort.SliceStable(games, func(i, j int) bool { return games[i].HoursPlayed < games[j].HoursPlayed })
	case OrderHoursDescending:
		sort.SliceStable(games, func(i, j int) bool { return games[i].HoursPlayed > games[j].HoursPlayed })
	}
}
