package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/auth"
	"github.com/vovakirdan/babelchat-server/internal/session"
)

// WSHandler upgrades room connections and runs a session for each.
type WSHandler struct {
	authService  *auth.Service
	deps         session.Deps
	opts         session.Options
	origins      []string
	anyOrigin    bool
	maxReadBytes int64
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(authService *auth.Service, deps session.Deps, opts session.Options, allowedOrigins []string, maxReadBytes int64, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		authService:  authService,
		deps:         deps,
		opts:         opts,
		origins:      originPatterns(allowedOrigins),
		anyOrigin:    len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*"),
		maxReadBytes: maxReadBytes,
		log:          logger,
	}
}

// originPatterns reduces configured origins to the host patterns the
// websocket handshake checks.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

// identify authenticates connection-time credentials. A missing or invalid
// token yields an unauthenticated identity.
func (h *WSHandler) identify(c *gin.Context) session.Identity {
	token, ok := tokenFromRequest(c)
	if !ok {
		return session.Identity{}
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket token rejected")
		return session.Identity{}
	}
	return session.Identity{UserID: claims.UserID, Username: claims.Username, Authenticated: true}
}

// ServeRoom handles a connection to one room.
// GET /rooms/:room
func (h *WSHandler) ServeRoom(c *gin.Context) {
	ctx := c.Request.Context()
	room := c.Param("room")

	s := session.New(room, h.identify(c), h.deps, h.opts)

	var ws *websocket.Conn
	err := s.Connect(ctx, func(context.Context) (session.Conn, error) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:     h.origins,
			InsecureSkipVerify: h.anyOrigin,
		})
		if err != nil {
			return nil, err
		}
		if h.maxReadBytes > 0 {
			conn.SetReadLimit(h.maxReadBytes)
		}
		ws = conn
		return &wsConn{conn: conn}, nil
	})
	if errors.Is(err, session.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if err != nil {
		// Accept has already written the handshake failure.
		h.log.Warn().Err(err).Str("room", room).Msg("ws connect failed")
		if ws != nil {
			_ = ws.Close(websocket.StatusInternalError, "internal error")
		}
		return
	}

	err = s.Run(ctx)
	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		h.log.Warn().Err(err).Str("room", room).Msg("ws connection closed with error")
	}
	_ = ws.Close(status, reason)
}

// closeStatus maps the reason a session ended to a websocket close code.
func closeStatus(err error) (websocket.StatusCode, string) {
	if err == nil || errors.Is(err, io.EOF) {
		return websocket.StatusNormalClosure, "closing"
	}
	if errors.Is(err, context.Canceled) {
		return websocket.StatusGoingAway, "server shutting down"
	}
	if s := websocket.CloseStatus(err); s != -1 {
		return s, ""
	}
	return websocket.StatusInternalError, "internal error"
}

// wsConn adapts a websocket connection to session.Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, v any) error {
	return wsjson.Write(ctx, w.conn, v)
}
