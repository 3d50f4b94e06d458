package game

import "fmt"

// TrickResult is the outcome of a resolved trick, used for the trick-result
// broadcast.
type TrickResult struct {
	Winner        string      `json:"winner"`
	WinningCard   Card        `json:"winningCard"`
	Trick         []TrickPlay `json:"trick"`
	RoundComplete bool        `json:"roundComplete"`
}

// RoundResult is the outcome of a resolved round, used for the round-end
// broadcast.
type RoundResult struct {
	Round        int                      `json:"round"`
	RoundScores  map[string]int           `json:"roundScores"`
	Scores       map[string]int           `json:"scores"`
	Penalties    map[string]bool          `json:"penalties"`
	TeamScores   map[string]int           `json:"teamScores,omitempty"`
	GameOver     bool                     `json:"gameOver"`
	Winner       *GameWinner              `json:"winner,omitempty"`
	RoundHistory map[string][]RoundRecord `json:"roundHistory"`
}

// NilDecision records one player's answer to the nil prompt. Declaring nil
// fixes their bid at 0. Once every player has decided, bidding opens at the
// seat after the dealer, skipping nil bidders.
func (g *Game) NilDecision(player string, goNil bool) error {
	if g.Phase != PhaseNilPrompt {
		return ErrWrongPhase
	}
	choice, ok := g.NilBids[player]
	if !ok {
		return ErrUnknownPlayer
	}
	if choice != NilUndecided {
		return ErrAlreadyDecided
	}

	if goNil {
		g.NilBids[player] = NilDeclared
		g.Bids[player] = 0
	} else {
		g.NilBids[player] = NilDeclined
	}

	for _, name := range g.PlayerOrder {
		if g.NilBids[name] == NilUndecided {
			return nil
		}
	}
	g.beginBidding()
	return nil
}

// beginBidding transitions NilPrompt -> Bidding and points the turn at the
// first non-nil bidder from the bidding start seat.
func (g *Game) beginBidding() {
	g.Phase = PhaseBidding
	g.CurrentPlayerIndex = g.BiddingStartIndex
	g.advanceBidder()
}

// advanceBidder moves CurrentPlayerIndex to the next player without a
// decided bid. When everyone has a bid (or declared nil), play begins.
func (g *Game) advanceBidder() {
	n := len(g.PlayerOrder)
	for i := 0; i < n; i++ {
		idx := (g.CurrentPlayerIndex + i) % n
		name := g.PlayerOrder[idx]
		if _, bid := g.Bids[name]; !bid {
			g.CurrentPlayerIndex = idx
			return
		}
	}
	g.beginPlaying()
}

// beginPlaying transitions Bidding -> Playing and hands the lead to the
// first-lead seat.
func (g *Game) beginPlaying() {
	g.Phase = PhasePlaying
	g.CurrentTrick = nil
	g.TrickNumber = 0
	g.LedSuit = ""
	g.SpadesBroken = false
	g.CurrentPlayerIndex = g.FirstLeadIndex
}

// PlaceBid records a bid for the player whose turn it is. Bids are bounded
// by the number of tricks in the round; nil declarers are locked at 0.
func (g *Game) PlaceBid(player string, bid int) error {
	if g.Phase != PhaseBidding {
		return ErrWrongPhase
	}
	if g.playerIndex(player) < 0 {
		return ErrUnknownPlayer
	}
	if g.CurrentPlayer() != player {
		return ErrNotYourTurn
	}
	if g.NilBids[player] == NilDeclared {
		return ErrNilBidFixed
	}
	if bid < 0 || bid > g.CurrentRound {
		return fmt.Errorf("%w: bid %d, round %d", ErrBidOutOfRange, bid, g.CurrentRound)
	}

	g.Bids[player] = bid
	g.CurrentPlayerIndex = (g.CurrentPlayerIndex + 1) % len(g.PlayerOrder)
	g.advanceBidder()
	return nil
}

// PlayCard moves a card from the player's hand into the current trick.
// Returns true when the trick is complete; the caller schedules resolution.
// Legality: leading any card is allowed (including spades); otherwise the
// led suit must be followed when possible. Illegal plays leave state
// untouched.
func (g *Game) PlayCard(player string, cardID int) (trickComplete bool, err error) {
	if g.Phase != PhasePlaying {
		return false, ErrWrongPhase
	}
	if g.playerIndex(player) < 0 {
		return false, ErrUnknownPlayer
	}
	if g.CurrentPlayer() != player {
		return false, ErrNotYourTurn
	}
	for _, play := range g.CurrentTrick {
		if play.Player == player {
			// Can happen when a mid-game leave clamps the turn index
			// onto a seat that already played.
			return false, ErrNotYourTurn
		}
	}

	hand := g.Hands[player]
	cardIdx := -1
	for i, c := range hand {
		if c.ID == cardID {
			cardIdx = i
			break
		}
	}
	if cardIdx < 0 {
		return false, ErrCardNotFound
	}
	card := hand[cardIdx]

	leading := len(g.CurrentTrick) == 0
	if !leading && card.Suit != g.LedSuit && HasSuit(hand, g.LedSuit) {
		return false, fmt.Errorf("%w: %s led", ErrMustFollowSuit, g.LedSuit)
	}

	g.Hands[player] = append(hand[:cardIdx:cardIdx], hand[cardIdx+1:]...)
	g.CurrentTrick = append(g.CurrentTrick, TrickPlay{Player: player, Card: card})
	if leading {
		g.LedSuit = card.Suit
	}
	if card.Suit == Spades {
		g.SpadesBroken = true
	}

	if len(g.CurrentTrick) >= len(g.PlayerOrder) {
		return true, nil
	}
	g.CurrentPlayerIndex = (g.CurrentPlayerIndex + 1) % len(g.PlayerOrder)
	return false, nil
}

// TrickComplete reports whether the current trick has a card from everyone
// and is waiting on resolution.
func (g *Game) TrickComplete() bool {
	return g.Phase == PhasePlaying && len(g.PlayerOrder) > 0 && len(g.CurrentTrick) >= len(g.PlayerOrder)
}

// ResolveTrick reduces the full current trick to a winner, credits the
// trick, and either hands the next lead to the winner or reports the round
// complete.
func (g *Game) ResolveTrick() (*TrickResult, error) {
	if !g.TrickComplete() {
		return nil, ErrWrongPhase
	}

	winner := g.CurrentTrick[0]
	for _, play := range g.CurrentTrick[1:] {
		if CompareForTrick(play.Card, winner.Card, g.LedSuit) {
			winner = play
		}
	}

	g.TricksWon[winner.Player]++
	g.LastTrickWinner = winner.Player
	g.TrickNumber++

	result := &TrickResult{
		Winner:      winner.Player,
		WinningCard: winner.Card,
		Trick:       g.CurrentTrick,
	}

	g.CurrentTrick = nil
	g.LedSuit = ""
	if g.TrickNumber == g.CurrentRound {
		result.RoundComplete = true
		return result, nil
	}
	if idx := g.playerIndex(winner.Player); idx >= 0 {
		g.CurrentPlayerIndex = idx
	}
	return result, nil
}

// ResolveRound applies the scoring rules to every unit, records history and
// moves to RoundEnd — or GameOver with a winner after the final round.
func (g *Game) ResolveRound() (*RoundResult, error) {
	if g.Phase != PhasePlaying || g.TrickNumber != g.CurrentRound {
		return nil, ErrWrongPhase
	}

	result := &RoundResult{
		Round:       g.CurrentRound,
		RoundScores: make(map[string]int, len(g.PlayerOrder)),
		Penalties:   make(map[string]bool, len(g.PlayerOrder)),
	}

	for _, name := range g.PlayerOrder {
		isNil := g.NilBids[name] == NilDeclared
		bid := g.Bids[name]
		tricks := g.TricksWon[name]
		score, bags := ScoreBid(bid, tricks, isNil)

		record := RoundRecord{
			Round:      g.CurrentRound,
			Bid:        bid,
			Tricks:     tricks,
			Nil:        isNil,
			RoundScore: score,
			Bags:       bags,
		}

		if g.Mode == ModeTeams {
			// Individual rows in team mode are display only; the
			// denominator penalty applies to the team total.
			g.Scores[name] += score
			record.TotalAfter = g.Scores[name]
		} else {
			g.OvertrickBag[name] += bags
			total, penalized := ApplyRoundScore(g.Scores[name], score)
			g.Scores[name] = total
			record.PenaltyApplied = penalized
			record.TotalAfter = total
			result.Penalties[name] = penalized
		}

		g.RoundHistory[name] = append(g.RoundHistory[name], record)
		result.RoundScores[name] = score
	}

	if g.Mode == ModeTeams {
		result.TeamScores = make(map[string]int, len(g.Teams))
		for _, team := range g.sortedTeamNames() {
			g.resolveTeamRound(team, result)
		}
	}

	result.RoundHistory = g.RoundHistory
	result.Scores = g.Scores

	if g.CurrentRound == FinalRound {
		g.Phase = PhaseGameOver
		g.GameOver = true
		g.Winner = g.computeWinner()
		result.GameOver = true
		result.Winner = g.Winner
	} else {
		g.Phase = PhaseRoundEnd
		g.CurrentRound++
	}
	return result, nil
}

// resolveTeamRound scores one team for the round: non-nil members pool
// their bids and tricks into a single contract, nil members settle
// individually into the team total.
func (g *Game) resolveTeamRound(team string, result *RoundResult) {
	var teamBid, teamTricks int
	roundScore := 0
	bags := 0
	for _, name := range g.Teams[team] {
		if g.playerIndex(name) < 0 {
			continue
		}
		if g.NilBids[name] == NilDeclared {
			nilScore, _ := ScoreBid(0, g.TricksWon[name], true)
			roundScore += nilScore
			continue
		}
		teamBid += g.Bids[name]
		teamTricks += g.TricksWon[name]
	}
	contractScore, contractBags := ScoreBid(teamBid, teamTricks, false)
	roundScore += contractScore
	bags += contractBags

	g.TeamOvertrickBag[team] += bags
	total, penalized := ApplyRoundScore(g.TeamScores[team], roundScore)
	g.TeamScores[team] = total

	g.TeamRoundHistory[team] = append(g.TeamRoundHistory[team], TeamRoundRecord{
		Round:          g.CurrentRound,
		Bid:            teamBid,
		Tricks:         teamTricks,
		RoundScore:     roundScore,
		Bags:           bags,
		PenaltyApplied: penalized,
		TotalAfter:     total,
	})
	result.TeamScores[team] = total
	result.Penalties[team] = penalized
}

// NextRound starts the next round after RoundEnd. Host-triggered.
func (g *Game) NextRound() error {
	if g.Phase != PhaseRoundEnd {
		return ErrWrongPhase
	}
	if g.GameOver {
		return ErrGameFinished
	}
	return g.StartRound()
}

// computeWinner picks the unit with the highest total. Ties resolve to the
// earliest unit in player order (individual) or ascending team name (teams).
func (g *Game) computeWinner() *GameWinner {
	if g.Mode == ModeTeams {
		var winner *GameWinner
		for _, team := range g.sortedTeamNames() {
			if winner == nil || g.TeamScores[team] > winner.Score {
				winner = &GameWinner{Name: team, Score: g.TeamScores[team], Type: "team"}
			}
		}
		return winner
	}
	var winner *GameWinner
	for _, name := range g.PlayerOrder {
		if winner == nil || g.Scores[name] > winner.Score {
			winner = &GameWinner{Name: name, Score: g.Scores[name], Type: "player"}
		}
	}
	return winner
}
