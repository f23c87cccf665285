package realtime

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"talentmatch/api/internal/auth"
)

const handshakeTimeout = 5 * time.Second

// Handler upgrades authenticated connections and pumps hub messages onto
// the socket until either side goes away.
type Handler struct {
	hub      *Hub
	verifier auth.Verifier
	logger   *zap.Logger
}

func NewHandler(hub *Hub, verifier auth.Verifier, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, verifier: verifier, logger: logger}
}

// Upgrade gates the route to genuine websocket upgrade requests.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve is the websocket endpoint. The handshake carries the same bearer
// token as the REST surface, either as a query parameter or a header.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			token = bearerFromHeader(conn.Headers("Authorization"))
		}
		if token == "" {
			_ = conn.WriteJSON(fiber.Map{"error": "unauthorized"})
			_ = conn.Close()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		identity, err := h.verifier.Verify(ctx, token)
		cancel()
		if err != nil {
			h.logger.Debug("websocket auth failed", zap.Error(err))
			_ = conn.WriteJSON(fiber.Map{"error": "unauthorized"})
			_ = conn.Close()
			return
		}

		client := h.hub.Join(Room(identity.Subject))
		defer h.hub.Leave(client)

		h.logger.Debug("websocket session joined", zap.String("subject", identity.Subject))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				// Reads only serve to detect the peer closing.
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-client.Outbox():
				if !ok {
					_ = conn.Close()
					<-done
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}

func bearerFromHeader(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
