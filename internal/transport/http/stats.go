package http

import (
	"encoding/json"
	"net/http"
)

// Counter reports a live object count.
type Counter interface {
	Count() int
}

type statsResponse struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// StatsHandler serves room and connection counts.
func StatsHandler(rooms, connections Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsResponse{
			Rooms:       rooms.Count(),
			Connections: connections.Count(),
		})
	}
}
