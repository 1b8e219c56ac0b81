package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/models"
	"github.com/mcdev12/bidroom/go/internal/room"
)

// Service is the auction gateway: WebSocket connections, intent dispatch,
// room registry and HTTP resync.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	dispatcher        *Dispatcher
	registry          *room.Registry
	config            Config
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	// Defaults fill in settings a create_room intent leaves out.
	Defaults        models.AuctionConfig
	JanitorInterval time.Duration
	RoomIdleTTL     time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Defaults:         models.DefaultAuctionConfig(),
		JanitorInterval:  time.Minute,
		RoomIdleTTL:      30 * time.Minute,
	}
}

// NewService creates the gateway. The connection manager becomes the
// registry's broadcaster; opts.Broadcaster is ignored.
func NewService(config Config, opts room.RegistryOptions) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	opts.Broadcaster = connectionManager
	registry := room.NewRegistry(opts)

	dispatcher := NewDispatcher(registry, connectionManager, config.Defaults, opts.Clock)
	connectionManager.SetHandler(dispatcher)
	connectionManager.SetResync(func(roomCode string) {
		if err := registry.Resync(roomCode); err != nil {
			log.Debug().Err(err).Str("room_code", roomCode).Msg("room resync skipped")
		}
	})

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(registry),
		dispatcher:        dispatcher,
		registry:          registry,
		config:            config,
	}
}

// Registry exposes the room registry.
func (s *Service) Registry() *room.Registry {
	return s.registry
}

// Start runs the broadcast loop and the room janitor until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting auction gateway service")

	go s.connectionManager.Start(ctx)
	if s.config.JanitorInterval > 0 && s.config.RoomIdleTTL > 0 {
		go s.registry.RunJanitor(ctx, s.config.JanitorInterval, s.config.RoomIdleTTL)
	}

	<-ctx.Done()

	log.Info().Msg("auction gateway service shutting down")
	return s.Stop()
}

// Stop cancels pending countdowns and closes every connection.
func (s *Service) Stop() error {
	s.registry.Close()
	s.connectionManager.CloseAll()
	log.Info().Msg("auction gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("auction gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["rooms"] = s.registry.Stats()
	stats["service"] = "auction_gateway"
	stats["status"] = "running"
	return stats
}
