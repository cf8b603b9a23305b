package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownType      = errors.New("unknown message type")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ctxKey string

const messageTypeKey ctxKey = "message_type"

// MessageType returns the type of the message being handled, or "" outside a handler.
func MessageType(ctx context.Context) string {
	messageType, _ := ctx.Value(messageTypeKey).(string)
	return messageType
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives every error produced while serving a connection except read errors.
type ErrorHandler func(ctx context.Context, err error)

type WSRouter struct {
	routes      map[string]HandlerFunc[any]
	middlewares []Middleware
	onError     ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc[any]),
		onError: func(context.Context, error) {},
	}
}

// Use appends middlewares. The first one added is the outermost.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) OnError(fn ErrorHandler) {
	r.onError = fn
}

// Handle registers handler for messageType. The payload is decoded into T before the
// handler runs; middlewares see the raw payload.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload any) error {
		var input T
		raw, _ := payload.(json.RawMessage)
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}

		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		return handler(ctx, conn, input)
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

// ServeConn reads messages until the connection fails or ctx is done and dispatches them in order.
// Messages that cannot be routed are reported to the error handler and otherwise ignored.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.onError(ctx, fmt.Errorf("%w: %w", ErrMalformedMessage, err))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		route, exists := r.routes[msg.Type]
		if !exists {
			r.onError(msgCtx, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type))
			continue
		}

		if err := r.chain(route)(msgCtx, conn, msg.Payload); err != nil {
			r.onError(msgCtx, err)
		}
	}
}
