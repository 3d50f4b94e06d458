package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/playspades/backend/internal/config"
	"github.com/playspades/backend/internal/game"
	"github.com/playspades/backend/internal/room"
)

// Client event payloads
type CreateRoomData struct {
	PlayerName string        `json:"playerName"`
	GameMode   game.GameMode `json:"gameMode"`
}

type JoinRoomData struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type RoomCodeData struct {
	RoomCode string `json:"roomCode"`
}

type SetGameModeData struct {
	RoomCode string        `json:"roomCode"`
	GameMode game.GameMode `json:"gameMode"`
}

type AssignTeamData struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	TeamName   string `json:"teamName"`
}

type UpdateTeamsData struct {
	RoomCode string `json:"roomCode"`
	NumTeams int    `json:"numTeams"`
}

type NilDecisionData struct {
	RoomCode string `json:"roomCode"`
	GoNil    bool   `json:"goNil"`
}

type PlaceBidData struct {
	RoomCode string `json:"roomCode"`
	Bid      int    `json:"bid"`
}

type PlayCardData struct {
	RoomCode string `json:"roomCode"`
	CardID   int    `json:"cardId"`
}

// Orchestrator binds client events to the room manager and game engine
// under per-room serialization, and fans state back out to subscribers.
type Orchestrator struct {
	hub      *Hub
	rooms    *room.Manager
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewOrchestrator wires the hub, rooms table and config together.
func NewOrchestrator(hub *Hub, rooms *room.Manager, cfg *config.Config) *Orchestrator {
	o := &Orchestrator{hub: hub, rooms: rooms, cfg: cfg}
	o.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     o.checkOrigin,
	}
	return o
}

// checkOrigin allows the local dev frontends in development and requires
// same-origin in production.
func (o *Orchestrator) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if o.cfg.Environment == "development" {
		return strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// HandleWebSocket upgrades the connection and starts the session pumps.
func (o *Orchestrator) HandleWebSocket(c *gin.Context) {
	conn, err := o.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:      conn,
		sessionID: uuid.NewString(),
		send:      make(chan []byte, 256),
	}
	o.hub.Register(client)
	log.Printf("[WS] Session %s connected", client.sessionID)

	go client.writePump()
	go o.readPump(client)
}

// readPump reads client frames until the connection drops, then runs the
// disconnect handling.
func (o *Orchestrator) readPump(c *Client) {
	defer func() {
		o.hub.Unregister(c)
		c.conn.Close()
		o.handleDisconnect(c)
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for session %s: %v", c.sessionID, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		o.handleMessage(c, msg)
	}
}

// handleMessage dispatches one client event.
func (o *Orchestrator) handleMessage(c *Client, msg WSMessage) {
	switch msg.Type {
	case "create-room":
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleCreateRoom(c, data)

	case "join-room":
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleJoinRoom(c, data)

	case "toggle-ready":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.withRoom(c, data.RoomCode, func(r *room.Room) {
			if err := r.ToggleReady(c.sessionID); err != nil {
				return
			}
			o.broadcastRoomLocked(r)
		})

	case "set-game-mode":
		var data SetGameModeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.withRoom(c, data.RoomCode, func(r *room.Room) {
			if err := r.SetGameMode(data.GameMode); err != nil {
				return
			}
			o.broadcastRoomLocked(r)
		})

	case "assign-team":
		var data AssignTeamData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.withRoom(c, data.RoomCode, func(r *room.Room) {
			if err := r.AssignTeam(data.PlayerName, data.TeamName); err != nil {
				return
			}
			o.broadcastRoomLocked(r)
		})

	case "update-teams":
		var data UpdateTeamsData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.withRoom(c, data.RoomCode, func(r *room.Room) {
			if err := r.UpdateTeams(data.NumTeams); err != nil {
				return
			}
			o.broadcastRoomLocked(r)
		})

	case "leave-room":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleLeaveRoom(c, data.RoomCode)

	case "start-game":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleStartGame(c, data.RoomCode)

	case "nil-decision":
		var data NilDecisionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleNilDecision(c, data)

	case "place-bid":
		var data PlaceBidData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handlePlaceBid(c, data)

	case "play-card":
		var data PlayCardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handlePlayCard(c, data)

	case "next-round":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleNextRound(c, data.RoomCode)

	case "restart-game":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleRestartGame(c, data.RoomCode)

	case "end-game":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleEndGame(c, data.RoomCode)

	case "leave-game":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.handleLeaveGame(c, data.RoomCode)

	case "get-state":
		var data RoomCodeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		o.withRoom(c, data.RoomCode, func(r *room.Room) {
			o.broadcastRoomLocked(r)
			if r.Game != nil {
				if p := r.PlayerByID(c.sessionID); p != nil {
					o.sendGameStateLocked(r, p)
				}
			}
		})

	default:
		log.Printf("[WS] Unknown message type %q from session %s", msg.Type, c.sessionID)
	}
}

// withRoom looks up a room and runs fn under its lock. Unknown rooms are
// stale events and dropped.
func (o *Orchestrator) withRoom(c *Client, code string, fn func(r *room.Room)) {
	r, err := o.rooms.Get(code)
	if err != nil {
		return
	}
	r.Lock()
	defer r.Unlock()
	fn(r)
}

// ack answers a request on the caller's session.
func (o *Orchestrator) ack(c *Client, event string, success bool, errMsg string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"type":    event + "-ack",
		"success": success,
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	for k, v := range extra {
		payload[k] = v
	}
	o.hub.SendToSession(c.sessionID, payload)
}

func (o *Orchestrator) handleCreateRoom(c *Client, data CreateRoomData) {
	mode := data.GameMode
	if mode != game.ModeTeams {
		mode = game.ModeIndividual
	}
	r, err := o.rooms.CreateRoom(c.sessionID, data.PlayerName, mode)
	if err != nil {
		o.ack(c, "create-room", false, err.Error(), nil)
		return
	}

	r.Lock()
	defer r.Unlock()
	c.roomCode = r.Code
	o.ack(c, "create-room", true, "", map[string]interface{}{"roomCode": r.Code})
	o.broadcastRoomLocked(r)
}

func (o *Orchestrator) handleJoinRoom(c *Client, data JoinRoomData) {
	r, err := o.rooms.Get(data.RoomCode)
	if err != nil {
		o.ack(c, "join-room", false, err.Error(), nil)
		return
	}

	r.Lock()
	defer r.Unlock()

	reconnected, err := r.Join(c.sessionID, data.PlayerName)
	if err != nil {
		o.ack(c, "join-room", false, err.Error(), nil)
		return
	}

	c.roomCode = r.Code
	o.ack(c, "join-room", true, "", map[string]interface{}{
		"roomCode":    r.Code,
		"reconnected": reconnected,
	})
	if reconnected {
		log.Printf("[WS] %s reconnected to room %s as session %s", data.PlayerName, r.Code, c.sessionID)
	}

	o.broadcastRoomLocked(r)
	if r.Game != nil {
		if p := r.PlayerByID(c.sessionID); p != nil {
			o.sendGameStateLocked(r, p)
		}
	}
}

func (o *Orchestrator) handleLeaveRoom(c *Client, code string) {
	o.withRoom(c, code, func(r *room.Room) {
		empty := r.Leave(c.sessionID)
		c.roomCode = ""
		if empty {
			o.rooms.Delete(r.Code)
			return
		}
		o.broadcastRoomLocked(r)
	})
}

func (o *Orchestrator) handleStartGame(c *Client, code string) {
	o.withRoom(c, code, func(r *room.Room) {
		if !r.IsHost(c.sessionID) {
			return
		}
		if err := r.CanStart(); err != nil {
			o.ack(c, "start-game", false, err.Error(), nil)
			return
		}

		g, err := game.NewGame(r.PlayerNames(), r.Mode, r.Teams, game.NewDealSource())
		if err != nil {
			o.ack(c, "start-game", false, err.Error(), nil)
			return
		}
		r.Game = g
		r.Started = true
		log.Printf("[GAME] Room %s started (%d players, mode=%s)", r.Code, len(r.Players), r.Mode)

		o.ack(c, "start-game", true, "", nil)
		o.broadcastRoomLocked(r)
		o.broadcastGameLocked(r)
		o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
	})
}

func (o *Orchestrator) handleNilDecision(c *Client, data NilDecisionData) {
	o.withRoom(c, data.RoomCode, func(r *room.Room) {
		p := r.PlayerByID(c.sessionID)
		if p == nil || r.Game == nil {
			return
		}
		if err := r.Game.NilDecision(p.Name, data.GoNil); err != nil {
			o.reportGameError(c, err)
			return
		}
		o.broadcastGameLocked(r)
		o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
	})
}

func (o *Orchestrator) handlePlaceBid(c *Client, data PlaceBidData) {
	o.withRoom(c, data.RoomCode, func(r *room.Room) {
		p := r.PlayerByID(c.sessionID)
		if p == nil || r.Game == nil {
			return
		}
		if err := r.Game.PlaceBid(p.Name, data.Bid); err != nil {
			o.reportGameError(c, err)
			return
		}
		o.broadcastGameLocked(r)
		o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
	})
}

// handlePlayCard uses TryLock: a play arriving while another transition
// holds the room lock is rejected outright. The client has already locked
// in its attempt optimistically and will be corrected by the next
// game-state snapshot.
func (o *Orchestrator) handlePlayCard(c *Client, data PlayCardData) {
	r, err := o.rooms.Get(data.RoomCode)
	if err != nil {
		return
	}
	if !r.TryLock() {
		log.Printf("[GAME] Rejected concurrent play-card in room %s (session %s)", data.RoomCode, c.sessionID)
		return
	}
	defer r.Unlock()

	p := r.PlayerByID(c.sessionID)
	if p == nil || r.Game == nil {
		return
	}

	complete, err := r.Game.PlayCard(p.Name, data.CardID)
	if err != nil {
		o.reportGameError(c, err)
		return
	}

	o.broadcastGameLocked(r)
	if complete {
		o.scheduleTrickResolve(r.Code)
	} else {
		o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
	}
}

func (o *Orchestrator) handleNextRound(c *Client, code string) {
	o.withRoom(c, code, func(r *room.Room) {
		if !r.IsHost(c.sessionID) || r.Game == nil {
			return
		}
		if err := r.Game.NextRound(); err != nil {
			return
		}
		o.broadcastGameLocked(r)
		o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
	})
}

func (o *Orchestrator) handleRestartGame(c *Client, code string) {
	o.withRoom(c, code, func(r *room.Room) {
		if !r.IsHost(c.sessionID) {
			return
		}
		r.Reset()
		log.Printf("[GAME] Room %s reset to lobby", r.Code)
		o.broadcastToRoomLocked(r, map[string]interface{}{"type": "game-reset"})
		o.broadcastRoomLocked(r)
	})
}

func (o *Orchestrator) handleEndGame(c *Client, code string) {
	o.withRoom(c, code, func(r *room.Room) {
		if !r.IsHost(c.sessionID) {
			return
		}
		o.broadcastToRoomLocked(r, map[string]interface{}{"type": "game-ended"})
		log.Printf("[GAME] Room %s ended by host", r.Code)
		// Deleting the room detaches every member: later events against the
		// code resolve to RoomNotFound and are dropped.
		o.rooms.Delete(r.Code)
	})
}

func (o *Orchestrator) handleLeaveGame(c *Client, code string) {
	o.withRoom(c, code, func(r *room.Room) {
		empty := r.RemoveFromGame(c.sessionID)
		c.roomCode = ""
		if empty {
			o.rooms.Delete(r.Code)
			return
		}
		o.broadcastRoomLocked(r)
		if r.Game != nil {
			o.broadcastGameLocked(r)
			o.scheduleAutoCheck(r.Code, o.cfg.AutoActDelay())
		}
	})
}

// handleDisconnect runs when a session's read pump exits. In the lobby the
// seat is released; mid-game the seat is kept for reconnection and the
// auto-progress check is scheduled after the grace period.
func (o *Orchestrator) handleDisconnect(c *Client) {
	if c.roomCode == "" {
		return
	}
	r, err := o.rooms.Get(c.roomCode)
	if err != nil {
		return
	}

	r.Lock()
	defer r.Unlock()

	p := r.PlayerByID(c.sessionID)
	if p == nil {
		// A reconnect already rebound this seat to a newer session.
		return
	}

	if r.Started {
		p.Connected = false
		log.Printf("[WS] %s disconnected from room %s mid-game", p.Name, r.Code)
		o.broadcastRoomLocked(r)
		o.scheduleAutoCheck(r.Code, o.cfg.DisconnectGrace())
		return
	}

	empty := r.Leave(c.sessionID)
	if empty {
		o.rooms.Delete(r.Code)
		return
	}
	o.broadcastRoomLocked(r)
}

// reportGameError sends play legality failures back to the caller and
// swallows stale-event errors.
func (o *Orchestrator) reportGameError(c *Client, err error) {
	switch {
	case errors.Is(err, game.ErrBidOutOfRange),
		errors.Is(err, game.ErrNilBidFixed),
		errors.Is(err, game.ErrMustFollowSuit),
		errors.Is(err, game.ErrCardNotFound):
		c.sendInvalidPlay(err.Error())
	default:
		// Wrong phase, wrong turn, unknown player: the event is stale.
	}
}

// roomPlayerView is the membership-level data sent in room-update.
type roomPlayerView struct {
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

// broadcastRoomLocked fans a room-update out to every connected member.
func (o *Orchestrator) broadcastRoomLocked(r *room.Room) {
	players := make([]roomPlayerView, 0, len(r.Players))
	hostName := ""
	for _, p := range r.Players {
		isHost := p.ID == r.HostID
		if isHost {
			hostName = p.Name
		}
		players = append(players, roomPlayerView{
			Name:      p.Name,
			Ready:     p.Ready,
			Connected: p.Connected,
			IsHost:    isHost,
		})
	}
	payload := map[string]interface{}{
		"type":     "room-update",
		"roomCode": r.Code,
		"gameMode": r.Mode,
		"started":  r.Started,
		"players":  players,
		"teams":    r.Teams,
		"hostName": hostName,
	}
	o.broadcastToRoomLocked(r, payload)
}

// broadcastToRoomLocked sends one payload to every connected member.
func (o *Orchestrator) broadcastToRoomLocked(r *room.Room, payload interface{}) {
	for _, p := range r.Players {
		if p.Connected {
			o.hub.SendToSession(p.ID, payload)
		}
	}
}

// broadcastGameLocked sends each connected member their redacted snapshot.
func (o *Orchestrator) broadcastGameLocked(r *room.Room) {
	if r.Game == nil {
		return
	}
	for _, p := range r.Players {
		if p.Connected {
			o.sendGameStateLocked(r, p)
		}
	}
}

func (o *Orchestrator) sendGameStateLocked(r *room.Room, p *room.Player) {
	o.hub.SendToSession(p.ID, map[string]interface{}{
		"type":  "game-state",
		"state": r.Game.SnapshotFor(p.Name),
	})
}
