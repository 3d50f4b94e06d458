package game

// PlayerSnapshot is the game state as one player is allowed to see it:
// their own hand in display order, everyone else's hand reduced to a count.
type PlayerSnapshot struct {
	GameMode     GameMode `json:"gameMode"`
	CurrentRound int      `json:"currentRound"`
	Phase        Phase    `json:"phase"`

	PlayerOrder   []string `json:"playerOrder"`
	DealerIndex   int      `json:"dealerIndex"`
	CurrentPlayer string   `json:"currentPlayer"`

	Hand            []Card         `json:"hand"`
	OtherHandCounts map[string]int `json:"otherHandCounts"`

	Bids      map[string]int       `json:"bids"`
	NilBids   map[string]NilChoice `json:"nilBids"`
	TricksWon map[string]int       `json:"tricksWon"`

	CurrentTrick    []TrickPlay `json:"currentTrick"`
	TrickNumber     int         `json:"trickNumber"`
	LedSuit         Suit        `json:"ledSuit"`
	SpadesBroken    bool        `json:"spadesBroken"`
	LastTrickWinner string      `json:"lastTrickWinner"`

	Scores       map[string]int           `json:"scores"`
	OvertrickBag map[string]int           `json:"overtrickBag"`
	RoundHistory map[string][]RoundRecord `json:"roundHistory"`

	Teams            map[string][]string          `json:"teams,omitempty"`
	TeamScores       map[string]int               `json:"teamScores,omitempty"`
	TeamOvertrickBag map[string]int               `json:"teamOvertrickBag,omitempty"`
	TeamRoundHistory map[string][]TeamRoundRecord `json:"teamRoundHistory,omitempty"`

	GameOver bool        `json:"gameOver"`
	Winner   *GameWinner `json:"winner,omitempty"`
}

// SnapshotFor builds the redacted view for one player. During the nil
// prompt a player who has not decided yet sees an empty hand — declaring
// nil must happen before seeing cards.
func (g *Game) SnapshotFor(player string) *PlayerSnapshot {
	hand := SortHand(g.Hands[player])
	if g.Phase == PhaseNilPrompt && g.NilBids[player] == NilUndecided {
		hand = []Card{}
	}

	counts := make(map[string]int, len(g.PlayerOrder))
	for _, name := range g.PlayerOrder {
		if name != player {
			counts[name] = len(g.Hands[name])
		}
	}

	return &PlayerSnapshot{
		GameMode:         g.Mode,
		CurrentRound:     g.CurrentRound,
		Phase:            g.Phase,
		PlayerOrder:      g.PlayerOrder,
		DealerIndex:      g.DealerIndex,
		CurrentPlayer:    g.CurrentPlayer(),
		Hand:             hand,
		OtherHandCounts:  counts,
		Bids:             g.Bids,
		NilBids:          g.NilBids,
		TricksWon:        g.TricksWon,
		CurrentTrick:     g.CurrentTrick,
		TrickNumber:      g.TrickNumber,
		LedSuit:          g.LedSuit,
		SpadesBroken:     g.SpadesBroken,
		LastTrickWinner:  g.LastTrickWinner,
		Scores:           g.Scores,
		OvertrickBag:     g.OvertrickBag,
		RoundHistory:     g.RoundHistory,
		Teams:            g.Teams,
		TeamScores:       g.TeamScores,
		TeamOvertrickBag: g.TeamOvertrickBag,
		TeamRoundHistory: g.TeamRoundHistory,
		GameOver:         g.GameOver,
		Winner:           g.Winner,
	}
}
