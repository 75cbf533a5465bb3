package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

const (
	roomKeyPrefix  = "trivia:room:"
	connectionsKey = "trivia:connections"

	mirrorQueueSize = 1024
	mirrorTimeout   = 500 * time.Millisecond
)

type mirrorOp func(ctx context.Context)

// RoomRegistry is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Rooms stay in a local map; their state is never serialised.
//   - Redis carries a liveness key per room, refreshed on every lookup, and
//     the connection index so operators can inspect who is playing where.
//   - Redis writes are queued to a single mirror goroutine and never run on
//     the caller's path. Updates are dropped when the queue is full.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	rooms map[string]*app.Room
	conns map[string]string

	opsMu  sync.RWMutex
	closed bool
	ops    chan mirrorOp
	done   chan struct{}
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	r := &RoomRegistry{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
		conns:  make(map[string]string),
		ops:    make(chan mirrorOp, mirrorQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *RoomRegistry) GetOrCreate(roomID string, questions []domain.QuestionRecord) *app.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = app.NewRoom(roomID, questions)
		r.rooms[roomID] = room
	}
	r.touchLocked(room)
	return room
}

func (r *RoomRegistry) Get(roomID string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if ok {
		r.touchLocked(room)
	}
	return room, ok
}

func (r *RoomRegistry) Remove(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return
	}
	delete(r.rooms, roomID)
	key := r.key(roomID)
	r.mirror(func(ctx context.Context) {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("failed to clear room marker")
		}
	})
}

func (r *RoomRegistry) Bind(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = roomID
	r.mirror(func(ctx context.Context) {
		if err := r.client.HSet(ctx, connectionsKey, connID, roomID).Err(); err != nil {
			log.Warn().Err(err).Str("conn_id", connID).Str("room_id", roomID).Msg("failed to index connection")
		}
	})
}

func (r *RoomRegistry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		return
	}
	delete(r.conns, connID)
	r.mirror(func(ctx context.Context) {
		if err := r.client.HDel(ctx, connectionsKey, connID).Err(); err != nil {
			log.Warn().Err(err).Str("conn_id", connID).Msg("failed to unindex connection")
		}
	})
}

func (r *RoomRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.conns[connID]
	return roomID, ok
}

// Count returns the number of live rooms in this process.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Reset removes room markers and the connection index left by a previous process.
// Call it before serving.
func (r *RoomRegistry) Reset(ctx context.Context) error {
	keys := []string{connectionsKey}
	iter := r.client.Scan(ctx, 0, roomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan room markers: %w", err)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear room markers: %w", err)
	}
	log.Info().Int("keys", len(keys)).Msg("cleared stale room registry keys")
	return nil
}

// Close stops the mirror after draining queued writes.
func (r *RoomRegistry) Close() {
	r.opsMu.Lock()
	if r.closed {
		r.opsMu.Unlock()
		return
	}
	r.closed = true
	close(r.ops)
	r.opsMu.Unlock()
	<-r.done
}

// touchLocked extends the room's liveness key, recreating it if it expired.
func (r *RoomRegistry) touchLocked(room *app.Room) {
	key, createdAt, roomID := r.key(room.ID()), room.CreatedAt().Unix(), room.ID()
	r.mirror(func(ctx context.Context) {
		if err := r.client.Set(ctx, key, createdAt, r.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("failed to mark room live")
		}
	})
}

// mirror queues op without blocking. Callers hold mu so ops reach Redis in
// the order the local maps changed.
func (r *RoomRegistry) mirror(op mirrorOp) {
	r.opsMu.RLock()
	defer r.opsMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ops <- op:
	default:
		log.Warn().Msg("redis mirror queue full, dropping update")
	}
}

func (r *RoomRegistry) run() {
	defer close(r.done)
	for op := range r.ops {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		op(ctx)
		cancel()
	}
}

func (r *RoomRegistry) key(roomID string) string {
	return roomKeyPrefix + roomID
}
