package scenario

import "github.com/skyrts/backend/internal/world"

var palette = []world.Color{
	{B: 255, A: 255},         // agent
	{G: 255, A: 255},         // friendly
	{R: 255, A: 255},         // hostile
	{R: 255, G: 255, A: 255}, // then cycle
	{R: 255, B: 255, A: 255},
	{G: 255, B: 255, A: 255},
	{R: 255, G: 128, A: 255},
	{R: 128, G: 128, B: 128, A: 255},
}

// Players builds the player list for n factions, numbered from 0.
func Players(n int) []world.Player {
	out := make([]world.Player, n)
	for i := range out {
		out[i] = world.Player{Faction: world.Faction(i), Color: palette[i%len(palette)]}
	}
	return out
}
