// Package server exposes the operator HTTP surface of a running crawl.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cerrors "cloudeng.io/errors"
	"cloudeng.io/logging/ctxlog"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/events"
)

// Catalog is the live store served by GET /catalog.
type Catalog interface {
	Document() catalog.Document
	Len() int
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// NewRouter builds the gin engine: /health, /catalog and the /events websocket.
func NewRouter(ctx context.Context, runID string, store Catalog, hub *events.Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"run_id":  runID,
			"entries": store.Len(),
			"clients": hub.Clients(),
		})
	})

	router.GET("/catalog", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Document())
	})

	router.GET("/events", eventsHandler(ctx, hub))

	return router
}

func eventsHandler(ctx context.Context, hub *events.Hub) gin.HandlerFunc {
	logger := ctxlog.Logger(ctx)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", "error", err)

			return
		}

		hub.Add(conn)
		logger.Debug("event client connected", "remote", c.Request.RemoteAddr)

		// Incoming messages are ignored; reading detects the disconnect.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(conn)
		logger.Debug("event client disconnected", "remote", c.Request.RemoteAddr)
	}
}

// Server is a running operator server.
type Server struct {
	http     *http.Server
	listener net.Listener
	hub      *events.Hub
	done     chan error
}

// Start listens on addr and serves handler in the background.
func Start(ctx context.Context, addr string, handler http.Handler, hub *events.Hub) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", addr, err)
	}

	s := &Server{
		http:     &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		listener: listener,
		hub:      hub,
		done:     make(chan error, 1),
	}

	go func() {
		err := s.http.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}

		s.done <- err
	}()

	ctxlog.Logger(ctx).Info("operator server listening", "addr", listener.Addr().String())

	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown disconnects event clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs cerrors.M

	if s.hub != nil {
		s.hub.Close()
	}

	errs.Append(s.http.Shutdown(ctx))
	errs.Append(<-s.done)

	return errs.Err()
}
