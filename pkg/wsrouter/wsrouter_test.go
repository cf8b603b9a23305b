package wsrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetInput struct {
	Name string `json:"name"`
}

type recorder struct {
	mu     sync.Mutex
	calls  []string
	errors []error
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) addErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) snapshot() ([]string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]error(nil), r.errors...)
}

func serve(t *testing.T, router *WSRouter) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		router.ServeConn(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServeConn(t *testing.T) {
	rec := &recorder{}
	router := New()
	router.OnError(func(ctx context.Context, err error) { rec.addErr(err) })
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			rec.add("mw:" + MessageType(ctx))
			return next(ctx, conn, payload)
		}
	})

	Handle(router, "greet", func(ctx context.Context, conn *websocket.Conn, input greetInput) error {
		rec.add("greet:" + input.Name)
		return nil
	})
	Handle(router, "fail", func(ctx context.Context, conn *websocket.Conn, input struct{}) error {
		return errors.New("boom")
	})

	conn := serve(t, router)
	frames := []string{
		`{"type":"greet","payload":{"name":"a"}}`,
		`not json`,
		`{"type":"nope","payload":{}}`,
		`{"type":"greet","payload":{"name":1}}`,
		`{"type":"fail"}`,
		`{"type":"greet","payload":{"name":"b"}}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	assert.Eventually(t, func() bool {
		calls, _ := rec.snapshot()
		return len(calls) > 0 && calls[len(calls)-1] == "greet:b"
	}, time.Second, 10*time.Millisecond)

	calls, errs := rec.snapshot()
	assert.Equal(t, []string{"mw:greet", "greet:a", "mw:greet", "mw:fail", "mw:greet", "greet:b"}, calls)
	require.Len(t, errs, 4)
	assert.ErrorIs(t, errs[0], ErrMalformedMessage)
	assert.ErrorIs(t, errs[1], ErrUnknownType)
	assert.ErrorIs(t, errs[2], ErrMalformedPayload)
	assert.EqualError(t, errs[3], "boom")
}

func TestMessageTypeOutsideHandler(t *testing.T) {
	assert.Equal(t, "", MessageType(context.Background()))
}
