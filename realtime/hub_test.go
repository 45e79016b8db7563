package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

type stubAuth struct{}

// stubAuth accepts "Bearer token-<uid>" and yields <uid>.
func (stubAuth) UserIDFromAuthHeader(h string) (string, error) {
	const prefix = "Bearer token-"
	if !strings.HasPrefix(h, prefix) {
		return "", errors.New("bad credential")
	}
	return strings.TrimPrefix(h, prefix), nil
}

type stubUsers map[string]domain.User

func (u stubUsers) GetUser(_ context.Context, id string) (domain.User, error) {
	user, ok := u[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func newHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	users := stubUsers{
		"u1": {ID: "u1", Name: "Ada"},
		"u2": {ID: "u2", Name: "Grace"},
	}
	hub := NewHub(NewRegistry(logger), stubAuth{}, users, logger)

	e := echo.New()
	e.GET("/ws", hub.Handler())
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

// wsClient wraps a test connection with a single background reader. A read
// deadline error is permanent on a gorilla conn, so frames are pumped into a
// channel once and silence/delivery are asserted with select timeouts.
type wsClient struct {
	conn   *websocket.Conn
	frames chan []byte
	errs   chan error
}

func dial(t *testing.T, srv *httptest.Server, userID string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=token-" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{
		conn:   conn,
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
	}
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.errs <- err
				return
			}
			c.frames <- data
		}
	}()
	return c
}

func send(t *testing.T, c *wsClient, evt domain.EventType, data string) {
	t.Helper()
	frame, err := json.Marshal(domain.Event{Type: evt, Data: json.RawMessage(data)})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readEvent(t *testing.T, c *wsClient) domain.Event {
	t.Helper()
	select {
	case data := <-c.frames:
		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		return ev
	case err := <-c.errs:
		t.Fatalf("read frame: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return domain.Event{}
}

func expectSilence(t *testing.T, c *wsClient) {
	t.Helper()
	select {
	case data := <-c.frames:
		t.Fatalf("expected no frame, got %s", data)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	srv := newHubServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy-violation close, got %v", err)
	}
}

func TestHandshakeRejectsUnknownUser(t *testing.T) {
	srv := newHubServer(t)
	ghost := dial(t, srv, "ghost")
	select {
	case err := <-ghost.errs:
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
			t.Fatalf("expected policy-violation close, got %v", err)
		}
	case data := <-ghost.frames:
		t.Fatalf("expected a close, got frame %s", data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the close")
	}
}

func TestJoinRelayAndPresence(t *testing.T) {
	srv := newHubServer(t)
	grace := dial(t, srv, "u2")
	send(t, grace, domain.EventJoinBoard, `"board-1"`)
	// Sole member; nothing to notify yet.
	expectSilence(t, grace)

	ada := dial(t, srv, "u1")
	send(t, ada, domain.EventJoinBoard, `{"boardId":"board-1"}`)

	joined := readEvent(t, grace)
	if joined.Type != domain.EventUserJoined {
		t.Fatalf("expected user-joined, got %s", joined.Type)
	}
	var presence struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(joined.Data, &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if presence.UserID != "u1" || presence.UserName != "Ada" {
		t.Fatalf("unexpected presence: %+v", presence)
	}

	send(t, ada, domain.EventCardCreated, `{"boardId":"board-1","title":"Fix bug"}`)
	relayed := readEvent(t, grace)
	if relayed.Type != domain.EventCardCreated {
		t.Fatalf("expected card-created, got %s", relayed.Type)
	}
	var payload map[string]any
	if err := json.Unmarshal(relayed.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["userId"] != "u1" || payload["userName"] != "Ada" || payload["title"] != "Fix bug" {
		t.Fatalf("payload not enriched: %v", payload)
	}

	// The publisher never hears its own event.
	expectSilence(t, ada)
}

func TestTypingIndicatorsAreScopedByCard(t *testing.T) {
	srv := newHubServer(t)
	ada := dial(t, srv, "u1")
	grace := dial(t, srv, "u2")
	send(t, ada, domain.EventJoinBoard, `"board-1"`)
	expectSilence(t, ada)
	send(t, grace, domain.EventJoinBoard, `"board-1"`)
	readEvent(t, ada) // grace joined

	send(t, grace, domain.EventTypingStart, `{"boardId":"board-1","cardId":"card-9"}`)
	typing := readEvent(t, ada)
	if typing.Type != domain.EventUserTyping {
		t.Fatalf("expected user-typing, got %s", typing.Type)
	}
	var fields map[string]string
	if err := json.Unmarshal(typing.Data, &fields); err != nil {
		t.Fatalf("decode typing payload: %v", err)
	}
	if fields["cardId"] != "card-9" || fields["userId"] != "u2" || fields["userName"] != "Grace" {
		t.Fatalf("unexpected typing payload: %v", fields)
	}

	send(t, grace, domain.EventTypingStop, `{"boardId":"board-1","cardId":"card-9"}`)
	stopped := readEvent(t, ada)
	if stopped.Type != domain.EventUserStoppedTyping {
		t.Fatalf("expected user-stopped-typing, got %s", stopped.Type)
	}
}

func TestDisconnectEmitsUserLeft(t *testing.T) {
	srv := newHubServer(t)
	ada := dial(t, srv, "u1")
	grace := dial(t, srv, "u2")
	send(t, ada, domain.EventJoinBoard, `"board-1"`)
	expectSilence(t, ada)
	send(t, grace, domain.EventJoinBoard, `"board-1"`)
	readEvent(t, ada) // grace joined

	_ = grace.conn.Close()

	left := readEvent(t, ada)
	if left.Type != domain.EventUserLeft {
		t.Fatalf("expected user-left, got %s", left.Type)
	}
	var presence struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(left.Data, &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if presence.UserID != "u2" {
		t.Fatalf("unexpected user-left payload: %+v", presence)
	}
}

func TestUnknownEventTagIsDropped(t *testing.T) {
	srv := newHubServer(t)
	ada := dial(t, srv, "u1")
	grace := dial(t, srv, "u2")
	send(t, ada, domain.EventJoinBoard, `"board-1"`)
	expectSilence(t, ada)
	send(t, grace, domain.EventJoinBoard, `"board-1"`)
	readEvent(t, ada) // grace joined

	send(t, grace, domain.EventType("drop-table"), `{"boardId":"board-1"}`)
	expectSilence(t, ada)
}
