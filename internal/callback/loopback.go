package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Loopback serves the broker's redirect endpoints on 127.0.0.1 for logins
// started from a local process.
type Loopback struct {
	broker   *Broker
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener
	port     int
}

// ListenLoopback starts serving broker on 127.0.0.1:port. Port 0 picks a
// free port. The broker's base URL is pointed at the listener.
func ListenLoopback(broker *Broker, port int, logger *zap.Logger) (*Loopback, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	broker.RegisterRoutes(engine)

	l := &Loopback{
		broker:   broker,
		logger:   logger,
		listener: listener,
		port:     port,
		server: &http.Server{
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
	broker.SetBaseURL(l.BaseURL())

	go func() {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Loopback server failed", zap.Error(err))
		}
	}()
	return l, nil
}

// Port is the port the listener is bound to.
func (l *Loopback) Port() int { return l.port }

// BaseURL is the root of the loopback redirect URLs.
func (l *Loopback) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", l.port)
}

// Shutdown stops the server.
func (l *Loopback) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}
