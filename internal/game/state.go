package game

import (
	"errors"
	"fmt"
	mrand "math/rand"
	"sort"
)

// Game errors surfaced to the caller. Play legality failures are reported
// back to the offending client as invalid-play; everything else is treated
// as a stale event and dropped by the session layer.
var (
	ErrWrongPhase     = errors.New("action not valid in current phase")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrUnknownPlayer  = errors.New("player not in game")
	ErrBidOutOfRange  = errors.New("bid out of range")
	ErrNilBidFixed    = errors.New("nil bidders cannot place a bid")
	ErrAlreadyDecided = errors.New("nil decision already made")
	ErrMustFollowSuit = errors.New("must follow the led suit")
	ErrGameFinished   = errors.New("game is over")
)

// Phase is the game engine's state machine phase.
type Phase string

const (
	PhaseNilPrompt Phase = "nil_prompt"
	PhaseBidding   Phase = "bidding"
	PhasePlaying   Phase = "playing"
	PhaseRoundEnd  Phase = "round_end"
	PhaseGameOver  Phase = "game_over"
)

// NilChoice is the three-valued state of a player's nil declaration.
type NilChoice string

const (
	NilUndecided NilChoice = "undecided"
	NilDeclared  NilChoice = "nil"
	NilDeclined  NilChoice = "see_cards"
)

// GameMode selects individual or team scoring.
type GameMode string

const (
	ModeIndividual GameMode = "individual"
	ModeTeams      GameMode = "teams"
)

// FinalRound is the last round of a game; NilFromRound is the first round
// in which nil bidding is offered.
const (
	FinalRound   = 11
	NilFromRound = 10
)

// TrickPlay is one card laid into the current trick.
type TrickPlay struct {
	Player string `json:"player"`
	Card   Card   `json:"card"`
}

// GameWinner identifies the winning unit once the game is over.
type GameWinner struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Type  string `json:"type"` // "player" or "team"
}

// Game is the authoritative snapshot of one Spades game. All transitions
// are synchronous methods; the session layer serializes access per room.
type Game struct {
	Mode         GameMode `json:"gameMode"`
	CurrentRound int      `json:"currentRound"`
	Phase        Phase    `json:"phase"`

	PlayerOrder        []string `json:"playerOrder"`
	DealerIndex        int      `json:"dealerIndex"`
	BiddingStartIndex  int      `json:"biddingStartIndex"`
	FirstLeadIndex     int      `json:"firstLeadIndex"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex"`

	Hands     map[string][]Card    `json:"hands"`
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

	rng *mrand.Rand
}

// NewGame creates a game for the given player order and deals round 1.
// teams may be nil for individual mode. r seeds the deals; pass
// NewDealSource() outside tests.
func NewGame(playerOrder []string, mode GameMode, teams map[string][]string, r *mrand.Rand) (*Game, error) {
	if len(playerOrder) < 2 || len(playerOrder) > 8 {
		return nil, fmt.Errorf("unsupported player count %d", len(playerOrder))
	}
	g := &Game{
		Mode:         mode,
		CurrentRound: 1,
		PlayerOrder:  append([]string(nil), playerOrder...),
		Scores:       make(map[string]int),
		OvertrickBag: make(map[string]int),
		RoundHistory: make(map[string][]RoundRecord),
		rng:          r,
	}
	for _, name := range playerOrder {
		g.Scores[name] = 0
		g.OvertrickBag[name] = 0
		g.RoundHistory[name] = nil
	}
	if mode == ModeTeams {
		g.Teams = make(map[string][]string, len(teams))
		g.TeamScores = make(map[string]int, len(teams))
		g.TeamOvertrickBag = make(map[string]int, len(teams))
		g.TeamRoundHistory = make(map[string][]TeamRoundRecord, len(teams))
		for team, members := range teams {
			g.Teams[team] = append([]string(nil), members...)
			g.TeamScores[team] = 0
			g.TeamOvertrickBag[team] = 0
			g.TeamRoundHistory[team] = nil
		}
	}
	if err := g.StartRound(); err != nil {
		return nil, err
	}
	return g, nil
}

// SetDealSource attaches a deal RNG, e.g. after rehydrating a serialized game.
func (g *Game) SetDealSource(r *mrand.Rand) {
	g.rng = r
}

// StartRound (re)initializes state for g.CurrentRound: deals that many cards
// to every player, resets the bid and trick bookkeeping, rotates the dealer
// and decides whether the round opens with the nil prompt.
func (g *Game) StartRound() error {
	n := len(g.PlayerOrder)
	if g.rng == nil {
		g.rng = NewDealSource()
	}
	hands, err := Deal(g.PlayerOrder, g.CurrentRound, g.rng)
	if err != nil {
		return err
	}
	g.Hands = hands
	g.Bids = make(map[string]int, n)
	g.NilBids = make(map[string]NilChoice, n)
	g.TricksWon = make(map[string]int, n)
	for _, name := range g.PlayerOrder {
		g.NilBids[name] = NilUndecided
		g.TricksWon[name] = 0
	}

	g.CurrentTrick = nil
	g.TrickNumber = 0
	g.LedSuit = ""
	g.SpadesBroken = false

	g.DealerIndex = (g.CurrentRound - 1) % n
	g.BiddingStartIndex = (g.DealerIndex + 1) % n
	g.FirstLeadIndex = g.BiddingStartIndex
	if g.LastTrickWinner != "" {
		if idx := g.playerIndex(g.LastTrickWinner); idx >= 0 {
			g.FirstLeadIndex = idx
		}
	}

	if g.CurrentRound >= NilFromRound {
		g.Phase = PhaseNilPrompt
	} else {
		g.Phase = PhaseBidding
		g.CurrentPlayerIndex = g.BiddingStartIndex
	}
	return nil
}

// CurrentPlayer returns the name of the player whose action is expected.
func (g *Game) CurrentPlayer() string {
	if len(g.PlayerOrder) == 0 {
		return ""
	}
	return g.PlayerOrder[g.CurrentPlayerIndex]
}

func (g *Game) playerIndex(name string) int {
	for i, p := range g.PlayerOrder {
		if p == name {
			return i
		}
	}
	return -1
}

// RemovePlayer drops a player who left mid-game from the turn order and
// clamps the turn index back into range. Their hand and score rows remain
// for the round history.
func (g *Game) RemovePlayer(name string) {
	idx := g.playerIndex(name)
	if idx < 0 {
		return
	}
	g.PlayerOrder = append(g.PlayerOrder[:idx], g.PlayerOrder[idx+1:]...)
	n := len(g.PlayerOrder)
	if n == 0 {
		g.CurrentPlayerIndex = 0
		return
	}
	if g.CurrentPlayerIndex > idx {
		g.CurrentPlayerIndex--
	}
	if g.CurrentPlayerIndex >= n {
		g.CurrentPlayerIndex = 0
	}
	if g.DealerIndex >= n {
		g.DealerIndex = 0
	}
	if g.BiddingStartIndex >= n {
		g.BiddingStartIndex = 0
	}
	if g.FirstLeadIndex >= n {
		g.FirstLeadIndex = 0
	}
}

// sortedTeamNames returns team names in a stable order for deterministic
// iteration (scoring rows, winner selection).
func (g *Game) sortedTeamNames() []string {
	names := make([]string, 0, len(g.Teams))
	for team := range g.Teams {
		names = append(names, team)
	}
	sort.Strings(names)
	return names
}
