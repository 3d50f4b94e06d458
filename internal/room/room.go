package room

import (
	"errors"
	"fmt"
	"sync"

	"github.com/playspades/backend/internal/game"
)

// Membership errors. These surface in the ack of the offending request and
// never mutate state.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrNameTaken          = errors.New("name already taken in this room")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrNameInvalid        = errors.New("player name must be 1-15 characters")
	ErrPlayerNotInRoom    = errors.New("player not in room")
	ErrNotEnoughPlayers   = errors.New("need at least 2 players")
	ErrNotAllReady        = errors.New("all players must be ready")
	ErrTeamsUneven        = errors.New("team mode needs an even player count")
	ErrTeamsIncomplete    = errors.New("every player must be on a team and no team may be empty")
)

const (
	MaxPlayers = 8
	MinPlayers = 2
	MaxNameLen = 15
)

// Player is one seat in a room. The session id changes on reconnect; the
// name is the stable identity within the room.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// Room holds one lobby/game and its members. Every read or mutation of a
// room's state happens under its lock; the session layer acquires it for
// the whole transition including fan-out.
type Room struct {
	Code    string              `json:"code"`
	HostID  string              `json:"hostId"`
	Mode    game.GameMode       `json:"gameMode"`
	Players []*Player           `json:"players"`
	Teams   map[string][]string `json:"teams,omitempty"`
	Started bool                `json:"started"`
	Game    *game.Game          `json:"game,omitempty"`

	mu sync.Mutex
}

// Lock acquires the room lock.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the room lock.
func (r *Room) Unlock() { r.mu.Unlock() }

// TryLock attempts the room lock without blocking. Used for play-card so a
// second rapid-fire attempt is rejected instead of queued.
func (r *Room) TryLock() bool { return r.mu.TryLock() }

// All methods below assume the caller holds the room lock.

// PlayerByID finds a member by session id.
func (r *Room) PlayerByID(sessionID string) *Player {
	for _, p := range r.Players {
		if p.ID == sessionID {
			return p
		}
	}
	return nil
}

// PlayerByName finds a member by name.
func (r *Room) PlayerByName(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// IsHost reports whether the session id is the room host.
func (r *Room) IsHost(sessionID string) bool {
	return sessionID != "" && sessionID == r.HostID
}

// PlayerNames returns member names in seat order.
func (r *Room) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Name)
	}
	return names
}

// Join adds a new player, or rebinds an existing disconnected player with
// the same name to the new session (reconnect). Returns whether this was a
// reconnect.
func (r *Room) Join(sessionID, name string) (reconnected bool, err error) {
	if len(name) == 0 || len(name) > MaxNameLen {
		return false, ErrNameInvalid
	}

	if existing := r.PlayerByName(name); existing != nil {
		if !existing.Connected {
			wasHost := existing.ID == r.HostID
			existing.ID = sessionID
			existing.Connected = true
			if wasHost {
				r.HostID = sessionID
			}
			return true, nil
		}
		return false, ErrNameTaken
	}

	if r.Started {
		return false, ErrGameAlreadyStarted
	}
	if len(r.Players) >= MaxPlayers {
		return false, ErrRoomFull
	}

	r.Players = append(r.Players, &Player{ID: sessionID, Name: name, Connected: true})
	if r.HostID == "" {
		r.HostID = sessionID
	}
	return false, nil
}

// Leave handles a session dropping out. In the lobby the seat is removed
// and the host handed over if needed; mid-game the seat is kept so the
// player can reconnect by name. Returns whether the room is now empty of
// seats.
func (r *Room) Leave(sessionID string) (empty bool) {
	p := r.PlayerByID(sessionID)
	if p == nil {
		return len(r.Players) == 0
	}

	if r.Started {
		p.Connected = false
		return false
	}

	r.removeSeat(p.Name)
	if r.HostID == sessionID {
		r.transferHost()
	}
	return len(r.Players) == 0
}

// RemoveFromGame is an explicit mid-game leave: the seat is dropped and the
// player removed from the running game's turn order. Returns whether the
// room is now empty.
func (r *Room) RemoveFromGame(sessionID string) (empty bool) {
	p := r.PlayerByID(sessionID)
	if p == nil {
		return len(r.Players) == 0
	}

	name := p.Name
	r.removeSeat(name)
	if r.Game != nil {
		r.Game.RemovePlayer(name)
	}
	if r.HostID == sessionID {
		r.transferHost()
	}
	return len(r.Players) == 0
}

func (r *Room) removeSeat(name string) {
	for i, p := range r.Players {
		if p.Name == name {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	for team, members := range r.Teams {
		for i, m := range members {
			if m == name {
				r.Teams[team] = append(members[:i], members[i+1:]...)
				break
			}
		}
	}
}

func (r *Room) transferHost() {
	if len(r.Players) == 0 {
		r.HostID = ""
		return
	}
	r.HostID = r.Players[0].ID
}

// ToggleReady flips a player's ready flag. Lobby only.
func (r *Room) ToggleReady(sessionID string) error {
	if r.Started {
		return ErrGameAlreadyStarted
	}
	p := r.PlayerByID(sessionID)
	if p == nil {
		return ErrPlayerNotInRoom
	}
	p.Ready = !p.Ready
	return nil
}

// SetGameMode switches between individual and team play. Switching to
// teams seeds floor(players/2) empty teams, never fewer than two;
// switching away clears them.
func (r *Room) SetGameMode(mode game.GameMode) error {
	if r.Started {
		return ErrGameAlreadyStarted
	}
	r.Mode = mode
	if mode == game.ModeTeams {
		r.initTeams(len(r.Players) / 2)
	} else {
		r.Teams = nil
	}
	return nil
}

// UpdateTeams resizes the team list, keeping assignments that still fit.
func (r *Room) UpdateTeams(numTeams int) error {
	if r.Started {
		return ErrGameAlreadyStarted
	}
	if r.Mode != game.ModeTeams {
		return nil
	}
	if numTeams < 2 {
		numTeams = 2
	}
	old := r.Teams
	r.initTeams(numTeams)
	for team, members := range old {
		if _, ok := r.Teams[team]; ok {
			r.Teams[team] = members
		}
	}
	return nil
}

func (r *Room) initTeams(n int) {
	if n < 2 {
		n = 2
	}
	r.Teams = make(map[string][]string, n)
	for i := 1; i <= n; i++ {
		r.Teams[fmt.Sprintf("Team %d", i)] = []string{}
	}
}

// AssignTeam places a player on a team, removing them from any other first.
func (r *Room) AssignTeam(name, teamName string) error {
	if r.Started {
		return ErrGameAlreadyStarted
	}
	if r.PlayerByName(name) == nil {
		return ErrPlayerNotInRoom
	}
	if _, ok := r.Teams[teamName]; !ok {
		return fmt.Errorf("no such team %q", teamName)
	}
	for team, members := range r.Teams {
		for i, m := range members {
			if m == name {
				r.Teams[team] = append(members[:i], members[i+1:]...)
				break
			}
		}
	}
	r.Teams[teamName] = append(r.Teams[teamName], name)
	return nil
}

// CanStart validates the start-game preconditions: enough players, all
// ready, and for team mode an even count with everyone on a non-empty team.
func (r *Room) CanStart() error {
	if r.Started {
		return ErrGameAlreadyStarted
	}
	if len(r.Players) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	for _, p := range r.Players {
		if !p.Ready {
			return ErrNotAllReady
		}
	}
	if r.Mode == game.ModeTeams {
		if len(r.Players)%2 != 0 {
			return ErrTeamsUneven
		}
		assigned := make(map[string]bool, len(r.Players))
		for _, members := range r.Teams {
			if len(members) == 0 {
				return ErrTeamsIncomplete
			}
			for _, m := range members {
				assigned[m] = true
			}
		}
		for _, p := range r.Players {
			if !assigned[p.Name] {
				return ErrTeamsIncomplete
			}
		}
	}
	return nil
}

// Reset returns the room to the lobby: game discarded, ready flags cleared.
func (r *Room) Reset() {
	r.Started = false
	r.Game = nil
	for _, p := range r.Players {
		p.Ready = false
	}
}
