// Package gateway is the HTTP side of the backend: health, the callable
// token cleanup and websocket delivery of push payloads.
package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/auth"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
)

const localUID = "uid"

type Options struct {
	Tokens *push.Tokens
	Hub    *push.Hub
	JWT    *auth.JWTManager
	Logger *slog.Logger
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

type gateway struct {
	Options
}

// New builds the fiber app. The caller runs Listen and Shutdown.
func New(opts Options) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	g := &gateway{Options: opts}

	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: g.errorHandler})

	// Middleware
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	callable := app.Group("/callable", g.authMiddleware)
	callable.Post("/cleanupTokens", g.cleanupTokens)

	app.Get("/ws/push", wsUpgradeMiddleware, g.authMiddleware, g.requireDeviceToken, g.pushSocket())
	return app
}

// cleanupTokens removes the caller's stored push token.
func (g *gateway) cleanupTokens(c *fiber.Ctx) error {
	uid := c.Locals(localUID).(string)
	if err := g.Tokens.ClearToken(c.UserContext(), uid); err != nil {
		g.Logger.Error("Error cleaning up token", "uid", uid, "err", err)
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// wsUpgradeMiddleware rejects plain HTTP requests on websocket routes.
func wsUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// authMiddleware verifies the JWT from the `access_token` query param or the
// Authorization header.
func (g *gateway) authMiddleware(c *fiber.Ctx) error {
	token := c.Query("access_token")
	if token == "" {
		if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(h[len("Bearer "):])
		}
	}
	if token == "" {
		return apperr.Unauthorized("The function must be called while authenticated.")
	}
	claims, err := g.JWT.VerifyToken(token)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}
	c.Locals(localUID, claims.UserID)
	return c.Next()
}

// requireDeviceToken checks that the device token belongs to the caller.
func (g *gateway) requireDeviceToken(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperr.InvalidArg("token query parameter is required")
	}
	if !g.Tokens.Verify(c.UserContext(), c.Locals(localUID).(string), token) {
		return apperr.Forbidden("token does not belong to caller")
	}
	c.Locals("device", token)
	return c.Next()
}

// pushSocket registers the connection in the hub under its device token and
// keeps it until the client closes it.
func (g *gateway) pushSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		token := c.Locals("device").(string)
		connID := uuid.New().String()

		d := &socketDeliverer{conn: c}
		id := g.Hub.Register(token, d)
		g.Logger.Debug("push socket connected", "conn", connID)
		defer func() {
			g.Hub.Unregister(token, id)
			d.close()
			g.Logger.Debug("push socket closed", "conn", connID)
		}()

		// clients only read; the loop watches for the close frame
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					g.Logger.Warn("push socket read failed", "conn", connID, "err", err)
				}
				return
			}
		}
	})
}

// socketDeliverer serializes writes; the websocket conn is not safe for
// concurrent writers.
type socketDeliverer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (d *socketDeliverer) Deliver(p push.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperr.New(apperr.CodeUnavailable, "push socket closed")
	}
	return d.conn.WriteJSON(p)
}

func (d *socketDeliverer) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// errorHandler renders AppErrors as {"error": {...}} with a matching status.
func (g *gateway) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fiber.Map{"message": fe.Message}})
	}
	code := apperr.CodeOf(err)
	msg := "internal error"
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return c.Status(httpStatus(code)).JSON(fiber.Map{"error": fiber.Map{"code": code, "message": msg}})
}

func httpStatus(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists, apperr.CodeFailedPrecondition:
		return http.StatusConflict
	case apperr.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
