package ws

import (
	"log"
	"time"

	"github.com/playspades/backend/internal/game"
	"github.com/playspades/backend/internal/room"
)

// Scheduled transitions reference rooms by code and re-look them up under
// the lock when the timer fires; callbacks racing a room deletion become
// no-ops. The delays are pacing for client animation, never correctness.

// scheduleTrickResolve queues resolution of a full trick.
func (o *Orchestrator) scheduleTrickResolve(code string) {
	time.AfterFunc(o.cfg.TrickSettleDelay(), func() {
		o.resolveTrick(code)
	})
}

// resolveTrick settles the current trick and queues either the next-trick
// broadcast or the round settlement.
func (o *Orchestrator) resolveTrick(code string) {
	r, err := o.rooms.Get(code)
	if err != nil {
		return
	}
	r.Lock()
	defer r.Unlock()

	g := r.Game
	if g == nil || !g.TrickComplete() {
		return
	}

	result, err := g.ResolveTrick()
	if err != nil {
		return
	}

	o.broadcastToRoomLocked(r, map[string]interface{}{
		"type":        "trick-result",
		"winner":      result.Winner,
		"winningCard": result.WinningCard,
		"trick":       result.Trick,
	})

	if result.RoundComplete {
		time.AfterFunc(o.cfg.RoundEndDelay(), func() {
			o.resolveRound(code)
		})
		return
	}

	time.AfterFunc(o.cfg.TrickClearDelay(), func() {
		o.afterTrickCleared(code)
	})
}

// afterTrickCleared broadcasts the next-trick state and checks whether the
// new leader needs to be auto-played.
func (o *Orchestrator) afterTrickCleared(code string) {
	r, err := o.rooms.Get(code)
	if err != nil {
		return
	}
	r.Lock()
	defer r.Unlock()

	if r.Game == nil || r.Game.Phase != game.PhasePlaying {
		return
	}
	o.broadcastGameLocked(r)
	o.autoProgressLocked(r)
}

// resolveRound applies the scoring rules and broadcasts the round-end
// summary.
func (o *Orchestrator) resolveRound(code string) {
	r, err := o.rooms.Get(code)
	if err != nil {
		return
	}
	r.Lock()
	defer r.Unlock()

	g := r.Game
	if g == nil {
		return
	}

	result, err := g.ResolveRound()
	if err != nil {
		return
	}
	log.Printf("[GAME] Room %s finished round %d", r.Code, result.Round)

	payload := map[string]interface{}{
		"type":         "round-end",
		"round":        result.Round,
		"roundScores":  result.RoundScores,
		"scores":       result.Scores,
		"penalties":    result.Penalties,
		"roundHistory": result.RoundHistory,
	}
	if result.TeamScores != nil {
		payload["teamScores"] = result.TeamScores
	}
	if result.GameOver {
		payload["gameOver"] = true
		payload["winner"] = result.Winner
	}
	o.broadcastToRoomLocked(r, payload)
	o.broadcastGameLocked(r)
}

// scheduleAutoCheck queues a disconnected-turn check after the given delay,
// leaving a window for the player to reconnect first.
func (o *Orchestrator) scheduleAutoCheck(code string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		r, err := o.rooms.Get(code)
		if err != nil {
			return
		}
		r.Lock()
		defer r.Unlock()
		o.autoProgressLocked(r)
	})
}

// autoProgressLocked acts for disconnected players so the game can always
// move forward: undecided nil prompts decline, pending bids become 0, and
// pending plays pick the first legal card. Bounded by the player count per
// invocation so a fully disconnected table cannot loop forever.
func (o *Orchestrator) autoProgressLocked(r *room.Room) {
	g := r.Game
	if g == nil {
		return
	}

	connected := func(name string) bool {
		p := r.PlayerByName(name)
		return p != nil && p.Connected
	}

	changed := false
	for i := 0; i < len(g.PlayerOrder); i++ {
		switch g.Phase {
		case game.PhaseNilPrompt:
			acted := false
			for _, name := range g.PlayerOrder {
				if g.NilBids[name] == game.NilUndecided && !connected(name) {
					if err := g.NilDecision(name, false); err == nil {
						log.Printf("[GAME] Auto-declined nil for disconnected %s in room %s", name, r.Code)
						acted = true
						changed = true
					}
				}
			}
			if !acted || g.Phase == game.PhaseNilPrompt {
				// Remaining undecided players are connected.
				if changed {
					o.broadcastGameLocked(r)
				}
				return
			}

		case game.PhaseBidding:
			cur := g.CurrentPlayer()
			if connected(cur) {
				if changed {
					o.broadcastGameLocked(r)
				}
				return
			}
			if err := g.PlaceBid(cur, 0); err != nil {
				return
			}
			log.Printf("[GAME] Auto-bid 0 for disconnected %s in room %s", cur, r.Code)
			changed = true

		case game.PhasePlaying:
			if g.TrickComplete() {
				// Resolution is already scheduled.
				if changed {
					o.broadcastGameLocked(r)
				}
				return
			}
			cur := g.CurrentPlayer()
			if connected(cur) {
				if changed {
					o.broadcastGameLocked(r)
				}
				return
			}
			card, ok := game.FirstLegalCard(g.Hands[cur], g.LedSuit, len(g.CurrentTrick) == 0)
			if !ok {
				return
			}
			complete, err := g.PlayCard(cur, card.ID)
			if err != nil {
				return
			}
			log.Printf("[GAME] Auto-played %s for disconnected %s in room %s", card, cur, r.Code)
			changed = true
			if complete {
				o.broadcastGameLocked(r)
				o.scheduleTrickResolve(r.Code)
				return
			}

		default:
			if changed {
				o.broadcastGameLocked(r)
			}
			return
		}
	}

	if changed {
		o.broadcastGameLocked(r)
		// Bound reached with possibly more to do; pick it up on the next
		// check rather than looping here.
		o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
	}
}
