package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

// Authenticator verifies a bearer credential and yields the user id.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// UserDirectory resolves a user id to a profile for payload enrichment.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// Hub owns the websocket endpoint: it authenticates the handshake, runs one
// session per connection and routes client frames into board rooms.
type Hub struct {
	registry *Registry
	auth     Authenticator
	users    UserDirectory
	log      *log.Logger
	upgrader websocket.Upgrader

	handshakeTimeout time.Duration
	sendBuffer       int
}

// NewHub wires a Hub onto the given registry.
func NewHub(registry *Registry, auth Authenticator, users UserDirectory, logger *log.Logger) *Hub {
	return &Hub{
		registry: registry,
		auth:     auth,
		users:    users,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the SPA origin; access control
			// happens at the token check, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		handshakeTimeout: 5 * time.Second,
		sendBuffer:       64,
	}
}

// Handler upgrades the request and runs the session until disconnect.
func (h *Hub) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}

		conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		session := newSession(uuid.NewString(), conn, h.sendBuffer, h.log)
		session.transition(StateAuthenticating)

		user, err := h.authenticate(c.Request().Context(), authHeader)
		if err != nil {
			// Straight to Closed; the socket never reaches Active.
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			session.Close()
			h.log.WithError(err).Debug("websocket handshake rejected")
			return nil
		}
		session.UserID = user.ID
		session.UserName = user.Name
		session.transition(StateActive)

		h.log.WithFields(log.Fields{"user": user.ID, "session": session.ID}).Info("session connected")

		go session.writeLoop()
		h.readLoop(conn, session)

		h.disconnect(session)
		return nil
	}
}

// authenticate verifies the credential and resolves the user profile within
// the handshake budget, so an unauthenticated socket cannot linger.
func (h *Hub) authenticate(ctx context.Context, authHeader string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, h.handshakeTimeout)
	defer cancel()

	userID, err := h.auth.UserIDFromAuthHeader(authHeader)
	if err != nil {
		return domain.User{}, err
	}
	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (h *Hub) readLoop(conn *websocket.Conn, s *Session) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev domain.Event
		if err := sonic.ConfigStd.Unmarshal(data, &ev); err != nil {
			h.log.WithError(err).WithField("session", s.ID).Warn("malformed frame")
			continue
		}
		h.dispatch(s, ev)
	}
}

func (h *Hub) dispatch(s *Session, ev domain.Event) {
	switch ev.Type {
	case domain.EventJoinBoard:
		boardID, err := boardIDFromPayload(ev.Data)
		if err != nil {
			h.log.WithError(err).WithField("session", s.ID).Warn("join-board without board id")
			return
		}
		if h.registry.Join(boardID, s) {
			h.registry.Publish(boardID, domain.EventUserJoined, domain.Presence(s.UserID, s.UserName), s.ID)
		}

	case domain.EventLeaveBoard:
		boardID, err := boardIDFromPayload(ev.Data)
		if err != nil {
			h.log.WithError(err).WithField("session", s.ID).Warn("leave-board without board id")
			return
		}
		if h.registry.Leave(boardID, s) {
			h.registry.Publish(boardID, domain.EventUserLeft, domain.Presence(s.UserID, s.UserName), s.ID)
		}

	case domain.EventTypingStart, domain.EventTypingStop:
		scope, err := domain.ScopeOf(ev.Data)
		if err != nil {
			h.log.WithError(err).WithField("session", s.ID).Warn("typing event without scope")
			return
		}
		// Typing state is never persisted and never expires server-side;
		// clients clear a stuck indicator with their own timeout.
		if ev.Type == domain.EventTypingStart {
			h.registry.Publish(scope.BoardID, domain.EventUserTyping, domain.TypingPayload(scope.CardID, s.UserID, s.UserName), s.ID)
		} else {
			h.registry.Publish(scope.BoardID, domain.EventUserStoppedTyping, domain.TypingPayload(scope.CardID, s.UserID, ""), s.ID)
		}

	default:
		if !ev.Type.Relayable() {
			h.log.WithFields(log.Fields{"event": ev.Type, "session": s.ID}).Warn("unknown event tag dropped")
			return
		}
		scope, err := domain.ScopeOf(ev.Data)
		if err != nil {
			h.log.WithError(err).WithFields(log.Fields{"event": ev.Type, "session": s.ID}).Warn("event without board scope")
			return
		}
		enriched, err := domain.EnrichPayload(ev.Data, s.UserID, s.UserName)
		if err != nil {
			h.log.WithError(err).WithField("event", ev.Type).Warn("payload enrichment failed")
			return
		}
		h.registry.Publish(scope.BoardID, ev.Type, enriched, s.ID)
	}
}

// disconnect tears the session down and tells each room it was in.
func (h *Hub) disconnect(s *Session) {
	boards := h.registry.LeaveAll(s)
	for _, boardID := range boards {
		h.registry.Publish(boardID, domain.EventUserLeft, domain.Presence(s.UserID, s.UserName), s.ID)
	}
	s.Close()
	h.log.WithFields(log.Fields{"user": s.UserID, "session": s.ID, "rooms": len(boards)}).Info("session disconnected")
}

// boardIDFromPayload accepts either a bare JSON string ("b1") or an object
// with a boardId field, matching what clients send on join/leave.
func boardIDFromPayload(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", domain.Validationf("empty board id")
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, nil
	}
	scope, err := domain.ScopeOf(data)
	if err != nil {
		return "", err
	}
	return scope.BoardID, nil
}
