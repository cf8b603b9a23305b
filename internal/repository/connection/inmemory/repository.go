package inmemory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sharetube/syncwatch/internal/repository/connection"
)

// OverflowFunc is called for a client whose outbound queue is full.
type OverflowFunc func(clientId string)

type repo struct {
	clients    map[string]*connection.Client
	mu         sync.RWMutex
	onOverflow OverflowFunc
	logger     *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		clients: make(map[string]*connection.Client),
		logger:  logger,
	}
}

func (r *repo) OnOverflow(fn OverflowFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onOverflow = fn
}

func (r *repo) Add(client *connection.Client) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "connection_id", client.Id)
	if _, ok := r.clients[client.Id]; ok {
		return connection.ErrAlreadyExists
	}

	r.clients[client.Id] = client
	return nil
}

func (r *repo) Remove(id string) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "connection_id", id)
	client, ok := r.clients[id]
	if !ok {
		return connection.ErrNotFound
	}
	client.Close()

	delete(r.clients, id)
	return nil
}

func (r *repo) Get(id string) (*connection.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return client, nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// Send serializes msg once and enqueues it for every listed connection in order.
// Unknown ids are skipped. A client whose queue is full is closed.
func (r *repo) Send(ctx context.Context, ids []string, msg any) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	r.mu.RLock()
	var overflowed []*connection.Client
	for _, id := range ids {
		client, ok := r.clients[id]
		if !ok {
			continue
		}

		if !client.Enqueue(frame) {
			overflowed = append(overflowed, client)
		}
	}
	onOverflow := r.onOverflow
	r.mu.RUnlock()

	for _, client := range overflowed {
		r.logger.InfoContext(ctx, "outbound queue overflow, closing connection", "connection_id", client.Id)
		client.Close()
		if onOverflow != nil {
			onOverflow(client.Id)
		}
	}

	return nil
}
