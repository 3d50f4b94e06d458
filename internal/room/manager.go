package room

import (
	"crypto/rand"
	"log"
	"sync"

	"github.com/playspades/backend/internal/game"
)

// codeAlphabet is the room-code alphabet: uppercase letters without I and O,
// digits without 0 and 1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// Manager owns the process-wide rooms table. It only guards insert, lookup
// and delete; each room's inner state is protected by the room's own lock.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager creates an empty rooms table.
func NewManager() *Manager {
	return &Manager{rooms: make(map[string]*Room)}
}

// generateCode builds a random room code from the reduced alphabet.
func generateCode() string {
	buf := make([]byte, codeLength)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// CreateRoom makes a room with a fresh unique code, seeded with the host.
func (m *Manager) CreateRoom(hostID, hostName string, mode game.GameMode) (*Room, error) {
	if len(hostName) == 0 || len(hostName) > MaxNameLen {
		return nil, ErrNameInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code := generateCode()
	for _, exists := m.rooms[code]; exists; _, exists = m.rooms[code] {
		code = generateCode()
	}

	r := &Room{
		Code:   code,
		HostID: hostID,
		Mode:   mode,
		Players: []*Player{
			{ID: hostID, Name: hostName, Connected: true},
		},
	}
	if mode == game.ModeTeams {
		r.initTeams(2)
	}
	m.rooms[code] = r

	log.Printf("[ROOM] Created room %s (host=%s, mode=%s)", code, hostName, mode)
	return r, nil
}

// Get looks up a room by code.
func (m *Manager) Get(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Delete removes a room from the table.
func (m *Manager) Delete(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; ok {
		delete(m.rooms, code)
		log.Printf("[ROOM] Deleted room %s", code)
	}
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// FindPlayerRoom scans for the room holding the given session. Linear in
// rooms x players, which is fine at this scale.
func (m *Manager) FindPlayerRoom(sessionID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		r.Lock()
		found := r.PlayerByID(sessionID) != nil
		r.Unlock()
		if found {
			return r
		}
	}
	return nil
}
