package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"doccloud/internal/document/model"
	"doccloud/internal/document/service"
	"doccloud/internal/document/status"
	"doccloud/pkg/logger"
)

const (
	HistoryType         = "HISTORY"          // Full history, sent on join
	VersionAppendedType = "VERSION_APPENDED" // A new version was committed
)

type WSMessage struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// HistorySource supplies the history a client receives when it joins.
type HistorySource interface {
	GetHistory(name string) (model.DocumentHistory, error)
}

// Hub fans committed versions out to the clients watching each document. A
// client that joins while a commit is in flight may see that version both in
// HISTORY and as VERSION_APPENDED; versionNumber tells them apart.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	history    HistorySource
	mu         sync.Mutex
	done       chan struct{}
}

var _ service.Notifier = &Hub{}

func NewHub(history HistorySource) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		history:    history,
		done:       make(chan struct{}),
	}
}

// SetHistory sets the history source. It must be called before Run; the
// store and the hub each need the other at construction.
func (h *Hub) SetHistory(history HistorySource) {
	h.history = history
}

// VersionAppended queues a VERSION_APPENDED message for the room of name.
// It never blocks the committing caller.
func (h *Hub) VersionAppended(name string, v model.VersionRecord) {
	payload, err := json.Marshal(service.VersionResponse(v))
	if err != nil {
		logger.Sugar.Errorf("Error marshalling version of %s: %v", name, err)
		return
	}
	select {
	case h.Broadcast <- WSMessage{Type: VersionAppendedType, Name: name, Payload: payload}:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropping version %d of %s", v.VersionNumber, name)
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.Name] == nil {
				h.Rooms[client.Name] = make(map[*Client]bool)
			}
			h.Rooms[client.Name][client] = true
			h.mu.Unlock()

			msg, err := h.historyMessage(client.Name)
			if err != nil {
				logger.Sugar.Errorf("Failed to build history for %s: %v", client.Name, err)
				continue
			}
			h.send(client, msg)

		case client := <-h.Unregister:
			h.remove(client)

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.Name]))
			for client := range h.Rooms[msg.Name] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				h.send(client, payload)
			}
		}
	}
}

// send drops a client whose buffer is full rather than block the hub.
func (h *Hub) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		logger.Sugar.Warnf("Client on %s has a full send buffer. Dropping it.", client.Name)
		h.remove(client)
		client.Conn.Close()
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Rooms[client.Name][client]; !ok {
		return
	}
	delete(h.Rooms[client.Name], client)
	close(client.Send)
	if len(h.Rooms[client.Name]) == 0 {
		delete(h.Rooms, client.Name)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, clients := range h.Rooms {
		for client := range clients {
			close(client.Send)
			client.Conn.Close()
		}
		delete(h.Rooms, name)
	}
}

// join hands client to the hub unless it has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// RoomSize reports how many clients watch name.
func (h *Hub) RoomSize(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[name])
}

func (h *Hub) historyMessage(name string) ([]byte, error) {
	resp := model.HistoryResponse{Name: name, Status: string(status.Pending), Versions: []model.VersionResponse{}}
	var (
		hist model.DocumentHistory
		err  error = model.ErrNotFound
	)
	if h.history != nil {
		hist, err = h.history.GetHistory(name)
	}
	switch {
	case err == nil:
		resp = service.HistoryResponse(hist)
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: HistoryType, Name: name, Payload: payload})
}
