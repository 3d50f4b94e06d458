package game

import (
	"encoding/json"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *mrand.Rand {
	return mrand.New(mrand.NewSource(7))
}

func newTestGame(t *testing.T, names ...string) *Game {
	t.Helper()
	g, err := NewGame(names, ModeIndividual, nil, testRand())
	require.NoError(t, err)
	return g
}

func mkCard(id int, suit Suit, rank Rank) Card {
	return Card{ID: id, Suit: suit, Rank: rank, Value: rankValues[rank]}
}

// checkConservation asserts invariant 3a/3b: every dealt card is in exactly
// one hand or the current trick, and the totals add up.
func checkConservation(t *testing.T, g *Game) {
	t.Helper()
	n := len(g.PlayerOrder)
	inHands := 0
	seen := make(map[int]bool)
	for _, name := range g.PlayerOrder {
		inHands += len(g.Hands[name])
		for _, c := range g.Hands[name] {
			require.False(t, seen[c.ID], "card id %d in two places", c.ID)
			seen[c.ID] = true
		}
	}
	for _, play := range g.CurrentTrick {
		require.False(t, seen[play.Card.ID], "trick card id %d also in a hand", play.Card.ID)
		seen[play.Card.ID] = true
	}
	assert.Equal(t, g.CurrentRound*n, inHands+g.TrickNumber*n+len(g.CurrentTrick),
		"card conservation violated in round %d", g.CurrentRound)
}

func TestStartRoundDealsAndRotatesDealer(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")

	assert.Equal(t, 1, g.CurrentRound)
	assert.Equal(t, PhaseBidding, g.Phase)
	assert.Equal(t, 0, g.DealerIndex)
	assert.Equal(t, 1, g.BiddingStartIndex)
	assert.Equal(t, "B", g.CurrentPlayer())
	for _, name := range g.PlayerOrder {
		assert.Len(t, g.Hands[name], 1)
	}
	checkConservation(t, g)
}

func TestRoundOneBasicTrick(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")

	// Bidding starts left of the dealer.
	require.NoError(t, g.PlaceBid("B", 1))
	require.NoError(t, g.PlaceBid("C", 0))
	require.NoError(t, g.PlaceBid("A", 0))

	require.Equal(t, PhasePlaying, g.Phase)
	assert.Equal(t, "B", g.CurrentPlayer(), "first lead is the bidding start in round 1")

	// Stack the hands for a known outcome.
	g.Hands["B"] = []Card{mkCard(10, Hearts, Five)}
	g.Hands["C"] = []Card{mkCard(20, Hearts, King)}
	g.Hands["A"] = []Card{mkCard(30, Spades, Two)}

	complete, err := g.PlayCard("B", 10)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, Hearts, g.LedSuit)
	checkConservation(t, g)

	complete, err = g.PlayCard("C", 20)
	require.NoError(t, err)
	assert.False(t, complete)

	complete, err = g.PlayCard("A", 30)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.True(t, g.SpadesBroken)

	result, err := g.ResolveTrick()
	require.NoError(t, err)
	assert.Equal(t, "A", result.Winner, "spade trumps the led hearts")
	assert.True(t, result.RoundComplete)
	assert.Equal(t, 1, g.TricksWon["A"])

	round, err := g.ResolveRound()
	require.NoError(t, err)
	assert.Equal(t, PhaseRoundEnd, g.Phase)
	// A bid 0 without nil: the trick scores 1 and becomes a bag. B failed
	// a bid of 1, C made a bid of 0 with no tricks.
	assert.Equal(t, map[string]int{"A": 1, "B": -10, "C": 0}, round.RoundScores)
	assert.Equal(t, 1, g.Scores["A"])
	assert.Equal(t, 1, g.OvertrickBag["A"])
	assert.Equal(t, -10, g.Scores["B"])
	assert.Equal(t, 0, g.Scores["C"])
	assert.Equal(t, 2, g.CurrentRound)
}

func TestBidValidation(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")

	// Out of turn.
	err := g.PlaceBid("A", 1)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	// Out of range.
	err = g.PlaceBid("B", 2)
	assert.ErrorIs(t, err, ErrBidOutOfRange)
	err = g.PlaceBid("B", -1)
	assert.ErrorIs(t, err, ErrBidOutOfRange)

	// Unknown player.
	err = g.PlaceBid("Z", 1)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	// Wrong phase.
	require.NoError(t, g.PlaceBid("B", 1))
	require.NoError(t, g.PlaceBid("C", 0))
	require.NoError(t, g.PlaceBid("A", 0))
	err = g.PlaceBid("B", 1)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestFollowSuitEnforced(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	require.NoError(t, g.PlaceBid("B", 1))
	require.NoError(t, g.PlaceBid("C", 1))
	require.NoError(t, g.PlaceBid("A", 1))

	g.CurrentRound = 2
	g.Hands["B"] = []Card{mkCard(1, Hearts, Five), mkCard(2, Clubs, Two)}
	g.Hands["C"] = []Card{mkCard(3, Hearts, Nine), mkCard(4, Diamonds, Ace)}
	g.Hands["A"] = []Card{mkCard(5, Clubs, Seven), mkCard(6, Clubs, Jack)}
	g.TrickNumber = 0

	_, err := g.PlayCard("B", 1)
	require.NoError(t, err)

	// C holds hearts and must follow.
	_, err = g.PlayCard("C", 4)
	assert.ErrorIs(t, err, ErrMustFollowSuit)
	assert.Len(t, g.Hands["C"], 2, "illegal play leaves state unchanged")
	assert.Len(t, g.CurrentTrick, 1)

	_, err = g.PlayCard("C", 3)
	require.NoError(t, err)

	// A is void in hearts and may discard anything.
	complete, err := g.PlayCard("A", 5)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestLeadingSpadesIsAlwaysLegal(t *testing.T) {
	g := newTestGame(t, "A", "B")
	require.NoError(t, g.PlaceBid("B", 0))
	require.NoError(t, g.PlaceBid("A", 0))

	g.Hands["B"] = []Card{mkCard(1, Spades, Ace)}
	g.Hands["A"] = []Card{mkCard(2, Hearts, Two)}

	assert.False(t, g.SpadesBroken)
	_, err := g.PlayCard("B", 1)
	require.NoError(t, err, "leading a spade has no broken restriction")
	assert.True(t, g.SpadesBroken)
}

func TestPlayUnknownCardRejected(t *testing.T) {
	g := newTestGame(t, "A", "B")
	require.NoError(t, g.PlaceBid("B", 0))
	require.NoError(t, g.PlaceBid("A", 0))

	_, err := g.PlayCard("B", 9999)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestNilPromptOnlyInLateRounds(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	for round := 1; round <= 11; round++ {
		g.CurrentRound = round
		g.LastTrickWinner = ""
		require.NoError(t, g.StartRound())
		if round >= 10 {
			assert.Equal(t, PhaseNilPrompt, g.Phase, "round %d", round)
		} else {
			assert.Equal(t, PhaseBidding, g.Phase, "round %d", round)
		}
	}
}

func TestNilDecisionFlow(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	g.CurrentRound = 10
	require.NoError(t, g.StartRound())
	require.Equal(t, PhaseNilPrompt, g.Phase)

	// Undecided players see no cards.
	snap := g.SnapshotFor("A")
	assert.Empty(t, snap.Hand)

	require.NoError(t, g.NilDecision("A", false))
	assert.ErrorIs(t, g.NilDecision("A", true), ErrAlreadyDecided)

	require.NoError(t, g.NilDecision("B", true))
	assert.Equal(t, 0, g.Bids["B"])

	require.NoError(t, g.NilDecision("C", true))
	require.Equal(t, PhaseBidding, g.Phase)

	// Round 10: dealer is index (10-1)%3 = 0 (A), bidding starts at B,
	// but B and C declared nil, so A is the only bidder.
	assert.Equal(t, "A", g.CurrentPlayer())

	// Nil bidders cannot bid.
	assert.ErrorIs(t, g.PlaceBid("B", 1), ErrNotYourTurn)

	require.NoError(t, g.PlaceBid("A", 3))
	assert.Equal(t, PhasePlaying, g.Phase)
}

func TestNilScoringSuccessAndFailure(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	g.CurrentRound = 10
	require.NoError(t, g.StartRound())

	require.NoError(t, g.NilDecision("A", false))
	require.NoError(t, g.NilDecision("B", true))
	require.NoError(t, g.NilDecision("C", true))
	require.NoError(t, g.PlaceBid("A", 3))

	// Simulate the round outcome without playing 10 tricks.
	g.TricksWon["A"] = 9
	g.TricksWon["B"] = 1
	g.TricksWon["C"] = 0
	g.TrickNumber = g.CurrentRound
	for _, name := range g.PlayerOrder {
		g.Hands[name] = nil
	}

	result, err := g.ResolveRound()
	require.NoError(t, err)

	// A made 3 with 6 overtricks; B failed nil; C made nil.
	assert.Equal(t, 36, result.RoundScores["A"])
	assert.Equal(t, -100, result.RoundScores["B"])
	assert.Equal(t, 100, result.RoundScores["C"])
	assert.Equal(t, 6, g.OvertrickBag["A"])
	assert.Equal(t, 0, g.OvertrickBag["B"])

	recB := g.RoundHistory["B"][len(g.RoundHistory["B"])-1]
	assert.True(t, recB.Nil)
	assert.Equal(t, -100, recB.RoundScore)
}

func TestTrickWinnerLeadsNext(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	require.NoError(t, g.PlaceBid("B", 1))
	require.NoError(t, g.PlaceBid("C", 1))
	require.NoError(t, g.PlaceBid("A", 1))

	g.CurrentRound = 2
	g.Hands["B"] = []Card{mkCard(1, Hearts, Five), mkCard(2, Clubs, Two)}
	g.Hands["C"] = []Card{mkCard(3, Hearts, Nine), mkCard(4, Diamonds, Ace)}
	g.Hands["A"] = []Card{mkCard(5, Clubs, Seven), mkCard(6, Hearts, Jack)}

	_, err := g.PlayCard("B", 1)
	require.NoError(t, err)
	_, err = g.PlayCard("C", 3)
	require.NoError(t, err)
	complete, err := g.PlayCard("A", 6)
	require.NoError(t, err)
	require.True(t, complete)

	result, err := g.ResolveTrick()
	require.NoError(t, err)
	assert.Equal(t, "A", result.Winner)
	assert.False(t, result.RoundComplete)
	assert.Equal(t, "A", g.CurrentPlayer(), "trick winner leads the next trick")
	assert.Empty(t, g.CurrentTrick)
	assert.Equal(t, Suit(""), g.LedSuit)
	checkConservation(t, g)
}

func TestDuplicateCardLaterCopyWins(t *testing.T) {
	g := newTestGame(t, "A", "B")
	require.NoError(t, g.PlaceBid("B", 1))
	require.NoError(t, g.PlaceBid("A", 1))

	// Both copies of the king of hearts in one trick.
	first := Card{ID: 40, Suit: Hearts, Rank: King, Value: 13, DeckNum: 0}
	second := Card{ID: 92, Suit: Hearts, Rank: King, Value: 13, DeckNum: 1}
	g.Hands["B"] = []Card{first}
	g.Hands["A"] = []Card{second}

	_, err := g.PlayCard("B", 40)
	require.NoError(t, err)
	_, err = g.PlayCard("A", 92)
	require.NoError(t, err)

	result, err := g.ResolveTrick()
	require.NoError(t, err)
	assert.Equal(t, "A", result.Winner, "tie between deck copies goes to the later card")
}

func TestGameOverAfterFinalRound(t *testing.T) {
	g := newTestGame(t, "A", "B")
	g.CurrentRound = 11
	require.NoError(t, g.StartRound())
	require.NoError(t, g.NilDecision("A", false))
	require.NoError(t, g.NilDecision("B", false))

	// Dealer for round 11 with 2 players is index 0; B bids first.
	require.NoError(t, g.PlaceBid("B", 0))
	require.NoError(t, g.PlaceBid("A", 0))

	g.Scores["A"] = 50
	g.Scores["B"] = 30
	g.TricksWon["A"] = 6
	g.TricksWon["B"] = 5
	g.TrickNumber = 11
	g.Hands["A"] = nil
	g.Hands["B"] = nil

	result, err := g.ResolveRound()
	require.NoError(t, err)
	assert.True(t, result.GameOver)
	assert.True(t, g.GameOver)
	assert.Equal(t, PhaseGameOver, g.Phase)
	require.NotNil(t, g.Winner)
	assert.Equal(t, "A", g.Winner.Name)
	assert.Equal(t, "player", g.Winner.Type)

	assert.ErrorIs(t, g.NextRound(), ErrWrongPhase)
}

func TestNextRoundAdvances(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	require.NoError(t, g.PlaceBid("B", 0))
	require.NoError(t, g.PlaceBid("C", 0))
	require.NoError(t, g.PlaceBid("A", 0))

	// Play out the single trick of round 1.
	for i := 0; i < 3; i++ {
		cur := g.CurrentPlayer()
		card, ok := FirstLegalCard(g.Hands[cur], g.LedSuit, len(g.CurrentTrick) == 0)
		require.True(t, ok)
		_, err := g.PlayCard(cur, card.ID)
		require.NoError(t, err)
	}
	_, err := g.ResolveTrick()
	require.NoError(t, err)
	_, err = g.ResolveRound()
	require.NoError(t, err)

	winner := g.LastTrickWinner
	require.NoError(t, g.NextRound())
	assert.Equal(t, 2, g.CurrentRound)
	assert.Equal(t, PhaseBidding, g.Phase)
	assert.Equal(t, 1, g.DealerIndex, "dealer rotates with the round")
	assert.Equal(t, g.playerIndex(winner), g.FirstLeadIndex,
		"last trick winner leads the new round")
	for _, name := range g.PlayerOrder {
		assert.Len(t, g.Hands[name], 2)
	}
	checkConservation(t, g)
}

func TestTeamScoring(t *testing.T) {
	teams := map[string][]string{
		"Team 1": {"A", "C"},
		"Team 2": {"B", "D"},
	}
	g, err := NewGame([]string{"A", "B", "C", "D"}, ModeTeams, teams, testRand())
	require.NoError(t, err)

	g.CurrentRound = 10
	require.NoError(t, g.StartRound())
	require.NoError(t, g.NilDecision("A", false))
	require.NoError(t, g.NilDecision("B", false))
	require.NoError(t, g.NilDecision("C", true))
	require.NoError(t, g.NilDecision("D", false))

	// Round 10, 4 players: dealer index 1 (B), bidding starts at C who is
	// nil, so D opens.
	require.Equal(t, "D", g.CurrentPlayer())
	require.NoError(t, g.PlaceBid("D", 2))
	require.NoError(t, g.PlaceBid("A", 3))
	require.NoError(t, g.PlaceBid("B", 2))
	require.Equal(t, PhasePlaying, g.Phase)

	g.TricksWon["A"] = 4
	g.TricksWon["B"] = 3
	g.TricksWon["C"] = 0
	g.TricksWon["D"] = 3
	g.TrickNumber = 10
	for _, name := range g.PlayerOrder {
		g.Hands[name] = nil
	}

	result, err := g.ResolveRound()
	require.NoError(t, err)

	// Team 1: A bid 3 won 4 (+31), C made nil (+100) -> 131, but the
	// traversal 0 -> 131 crosses 15: 131 - 55 = 76.
	assert.Equal(t, 76, result.TeamScores["Team 1"])
	assert.True(t, result.Penalties["Team 1"])
	assert.Equal(t, 1, g.TeamOvertrickBag["Team 1"])

	// Team 2: bid 2+2=4, tricks 3+3=6 -> 42, crosses 15 -> -13.
	assert.Equal(t, -13, result.TeamScores["Team 2"])
	assert.True(t, result.Penalties["Team 2"])
	assert.Equal(t, 2, g.TeamOvertrickBag["Team 2"])

	rec := g.TeamRoundHistory["Team 1"][0]
	assert.Equal(t, 10, rec.Round)
	assert.Equal(t, 3, rec.Bid)
	assert.Equal(t, 4, rec.Tricks)
	assert.Equal(t, 76, rec.TotalAfter)
}

func TestRemovePlayerClampsTurn(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")
	require.NoError(t, g.PlaceBid("B", 0))
	require.NoError(t, g.PlaceBid("C", 0))
	require.NoError(t, g.PlaceBid("A", 0))

	// C (index 2) is the last seat; point the turn at them and remove.
	g.CurrentPlayerIndex = 2
	g.RemovePlayer("C")
	assert.Equal(t, []string{"A", "B"}, g.PlayerOrder)
	assert.Less(t, g.CurrentPlayerIndex, 2)
}

func TestSnapshotRedaction(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")

	snap := g.SnapshotFor("A")
	assert.Len(t, snap.Hand, 1)
	assert.Equal(t, map[string]int{"B": 1, "C": 1}, snap.OtherHandCounts)
	assert.Equal(t, "B", snap.CurrentPlayer)
}

func TestSerializeRoundTripThenApplyEvent(t *testing.T) {
	g := newTestGame(t, "A", "B", "C")

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var clone Game
	require.NoError(t, json.Unmarshal(data, &clone))

	// The same legal event applied to both yields the same state.
	require.NoError(t, g.PlaceBid("B", 1))
	require.NoError(t, clone.PlaceBid("B", 1))

	origJSON, err := json.Marshal(g)
	require.NoError(t, err)
	cloneJSON, err := json.Marshal(&clone)
	require.NoError(t, err)
	assert.JSONEq(t, string(origJSON), string(cloneJSON))
}

func TestHistoryTotalsConsistent(t *testing.T) {
	// Property: totalAfter always equals the running sum of roundScore
	// minus 55 per penalty row.
	g := newTestGame(t, "A", "B")

	for round := 1; round <= 4; round++ {
		require.NoError(t, g.PlaceBid(g.CurrentPlayer(), 0))
		require.NoError(t, g.PlaceBid(g.CurrentPlayer(), round))
		for g.Phase == PhasePlaying {
			cur := g.CurrentPlayer()
			card, ok := FirstLegalCard(g.Hands[cur], g.LedSuit, len(g.CurrentTrick) == 0)
			require.True(t, ok)
			complete, err := g.PlayCard(cur, card.ID)
			require.NoError(t, err)
			if complete {
				_, err = g.ResolveTrick()
				require.NoError(t, err)
				if g.TrickNumber == g.CurrentRound {
					_, err = g.ResolveRound()
					require.NoError(t, err)
					break
				}
			}
			checkConservation(t, g)
		}
		if round < 4 {
			require.NoError(t, g.NextRound())
		}
	}

	for _, name := range g.PlayerOrder {
		sum := 0
		for _, rec := range g.RoundHistory[name] {
			sum += rec.RoundScore
			if rec.PenaltyApplied {
				sum -= 55
			}
			assert.Equal(t, rec.TotalAfter, sum, "player %s round %d", name, rec.Round)
		}
		assert.Equal(t, g.Scores[name], sum)
	}
}
