package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/broker"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/config"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/logging"
	"github.com/DSorlov/smartthingsng/internal/installation"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Broker is the slice of the device broker the API server uses.
// Implemented by *broker.DeviceBroker.
type Broker interface {
	Device(deviceID string) *broker.Device
	Devices() []*broker.Device
	Scenes() []smartthings.Scene
	Dispatcher() *broker.Dispatcher
	SendCommand(ctx context.Context, deviceID, componentID, capability, command string, arguments []any) error
	RefreshDevice(ctx context.Context, deviceID string) error
	ExecuteScene(ctx context.Context, sceneID string) error
	Diagnostics() *broker.DiagnosticsReport
	HealthCheck(ctx context.Context, deviceID string) (*broker.HealthReport, error)
	ProcessEvents(installedAppID string, events []smartthings.DeviceEventData)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Security      config.SecurityConfig
	SmartThings   config.SmartThingsConfig
	Logger        *logging.Logger
	Installations installation.Repository
	Version       string
}

// Server is the HTTP API server for smartthingsng.
//
// It manages the HTTP listener, routes, middleware, webhook dispatch, and
// the WebSocket hub. The server is created with New() and started with
// Start(). The device broker is attached later with SetBroker(), after
// installation setup succeeds; until then broker-backed routes answer 503
// while the webhook endpoint keeps serving onboarding lifecycles.
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	secCfg        config.SecurityConfig
	stCfg         config.SmartThingsConfig
	logger        *logging.Logger
	installations installation.Repository
	version       string
	server        *http.Server
	hub           *Hub
	tickets       *ticketStore
	cancel        context.CancelFunc // cancels background goroutines on Close()

	mu           sync.RWMutex
	broker       Broker
	unsubUpdates func()
	unsubButtons func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Installations == nil {
		return nil, fmt.Errorf("installation repository is required")
	}

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		secCfg:        deps.Security,
		stCfg:         deps.SmartThings,
		logger:        deps.Logger,
		installations: deps.Installations,
		version:       deps.Version,
		hub:           NewHub(deps.WS, deps.Logger),
		tickets:       newTicketStore(),
	}, nil
}

// SetBroker attaches the device broker once installation setup completes.
//
// Dispatcher notifications are wired into the WebSocket hub so connected
// clients receive device updates and button events. Passing nil detaches
// the broker again (used while an installation is being re-onboarded).
func (s *Server) SetBroker(b Broker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubUpdates != nil {
		s.unsubUpdates()
		s.unsubUpdates = nil
	}
	if s.unsubButtons != nil {
		s.unsubButtons()
		s.unsubButtons = nil
	}

	s.broker = b
	if b == nil {
		return
	}

	dispatcher := b.Dispatcher()
	s.unsubUpdates = dispatcher.SubscribeUpdates(s.broadcastUpdate)
	s.unsubButtons = dispatcher.SubscribeButtons(s.broadcastButton)
}

// getBroker returns the attached broker, or nil while setup is pending.
func (s *Server) getBroker() Broker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broker
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, builds the router, and
// launches the HTTP listener in a background goroutine. The server is
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It detaches the broker, waits up to 10 seconds for in-flight requests to
// complete, then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.SetBroker(nil)

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
