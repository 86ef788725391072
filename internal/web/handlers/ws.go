package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
	"github.com/kozaktomas/marker-scanner/internal/protocol"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// WSHandler answers feature vector messages with match results over a websocket.
type WSHandler struct {
	matcher        *matcher.Matcher
	originPatterns []string
}

// NewWSHandler creates a websocket handler. allowedOrigins are full origins
// ("https://scanner.example.com"); an empty list only accepts same-origin clients.
func NewWSHandler(m *matcher.Matcher, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		matcher:        m,
		originPatterns: originPatterns(allowedOrigins),
	}
}

// originPatterns strips the scheme, the websocket library matches on host.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o = strings.TrimSuffix(o, "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Serve upgrades the connection and runs the read loop until the client leaves.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	conn.SetReadLimit(constants.WSReadLimit)

	connID := uuid.New().String()
	limiter := rate.NewLimiter(rate.Limit(constants.WSMessagesPerSecond), constants.WSBurst)
	log := slog.With("conn", connID)
	log.Info("scanner client connected", "remote", sanitizeForLog(r.RemoteAddr))

	ctx := r.Context()
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("scanner client disconnected")
			default:
				if ctx.Err() == nil {
					log.Warn("websocket read failed", "error", err)
				}
			}
			return
		}

		if !limiter.Allow() {
			if err := h.write(ctx, conn, protocol.NewError("rate limit exceeded")); err != nil {
				return
			}
			continue
		}

		if err := h.write(ctx, conn, h.reply(raw)); err != nil {
			log.Warn("websocket write failed", "error", err)
			return
		}
	}
}

// reply builds the answer to one client message.
func (h *WSHandler) reply(raw []byte) any {
	msg, err := protocol.DecodeClient(raw)
	if err != nil {
		return protocol.NewError("%v", err)
	}

	best, matched, err := h.matcher.Match(msg.Vector)
	switch {
	case errors.Is(err, vector.ErrZeroNorm):
		return protocol.NewNoMatch(0, msg.Timestamp)
	case err != nil:
		return protocol.NewError("%v", err)
	case matched:
		return protocol.NewMatchResult(best, msg.Timestamp)
	default:
		var similarity float64
		if best != nil {
			similarity = best.Similarity
		}
		return protocol.NewNoMatch(similarity, msg.Timestamp)
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, constants.WSWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
