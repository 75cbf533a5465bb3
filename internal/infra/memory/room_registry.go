package memory

import (
	"sync"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// RoomRegistry is an in-memory implementation of app.RoomRegistry.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
	conns map[string]string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*app.Room),
		conns: make(map[string]string),
	}
}

func (r *RoomRegistry) GetOrCreate(roomID string, questions []domain.QuestionRecord) *app.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		return room
	}
	room := app.NewRoom(roomID, questions)
	r.rooms[roomID] = room
	return room
}

func (r *RoomRegistry) Get(roomID string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *RoomRegistry) Remove(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}

func (r *RoomRegistry) Bind(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = roomID
}

func (r *RoomRegistry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

func (r *RoomRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.conns[connID]
	return roomID, ok
}

// Count returns the number of live rooms.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
