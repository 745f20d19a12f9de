package farm

import "fmt"

// Game is one title with card drops still pending. Identity is AppID;
// HoursPlayed only grows while farming and CardsRemaining only shrinks as
// the web endpoint is resampled.
type Game struct {
	AppID          uint32
	Name           string
	HoursPlayed    float32
	CardsRemaining uint16
}

func (g *Game) String() string {
	return fmt.Sprintf("%s (%d): %d cards, %.1f hours", g.Name, g.AppID, g.CardsRemaining, g.HoursPlayed)
}
