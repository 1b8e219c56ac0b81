package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/archive"
	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/config"
	"github.com/mcdev12/bidroom/go/internal/dbconfig"
	"github.com/mcdev12/bidroom/go/internal/eventbus"
	"github.com/mcdev12/bidroom/go/internal/gateway"
	"github.com/mcdev12/bidroom/go/internal/room"
)

type Services struct {
	Gateway  *gateway.Service
	EventBus *eventbus.Dispatcher
	Archive  *archive.Handler
	Health   *eventbus.HealthChecker

	jetStream *eventbus.JetStreamPublisher
	database  *sql.DB
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Catalog → Publishers → Event bus → Room registry → Gateway
	s := &Services{}

	defaultCatalog, err := loadDefaultCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}

	publishers := []eventbus.Publisher{eventbus.LogPublisher{}}

	if cfg.NATS.Enabled {
		js, err := eventbus.NewJetStreamPublisher(ctx, cfg.NATS.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to set up JetStream publisher: %w", err)
		}
		s.jetStream = js
		publishers = append(publishers, js)
	}

	if cfg.Archive.Enabled {
		database, err := dbconfig.Open(ctx, cfg.Archive.DB)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.database = database

		repo := archive.NewRepository(database)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create archive schema: %w", err)
		}
		publishers = append(publishers, archive.NewRecorder(repo))
		s.Archive = archive.NewHandler(repo)

		log.Info().
			Str("database", cfg.Archive.DB.Database).
			Str("host", cfg.Archive.DB.Host).
			Msg("auction archive enabled")
	}

	// The bus outlives the request context so Close can flush it.
	s.EventBus = eventbus.NewDispatcher(cfg.EventBus, publishers...)
	if err := s.EventBus.Start(context.Background()); err != nil {
		s.Close()
		return nil, err
	}

	var db eventbus.Pinger
	if s.database != nil {
		db = s.database
	}
	var broker eventbus.ConnectionChecker
	if s.jetStream != nil {
		broker = s.jetStream
	}
	s.Health = eventbus.NewHealthChecker(s.EventBus, db, broker)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Defaults = cfg.Auction
	gatewayConfig.RoomIdleTTL = cfg.Rooms.IdleTTL
	gatewayConfig.JanitorInterval = cfg.Rooms.JanitorInterval

	s.Gateway = gateway.NewService(gatewayConfig, room.RegistryOptions{
		Journal:        s.EventBus,
		DefaultCatalog: defaultCatalog,
	})
	return s, nil
}

func loadDefaultCatalog(ctx context.Context, cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		log.Warn().Msg("no default catalog configured; hosts must upload lots")
		return nil, nil
	}
	cat, err := catalog.Load(ctx, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.Path, err)
	}
	if len(cfg.SetOrder) > 0 {
		if cat, err = catalog.New(cat.Lots(), catalog.WithSetOrder(cfg.SetOrder...)); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("path", cfg.Path).
		Int("lots", cat.Len()).
		Strs("sets", cat.SetOrder()).
		Msg("default catalog loaded")
	return cat, nil
}

// Close flushes the event bus and releases broker and database connections.
func (s *Services) Close() {
	if s.EventBus != nil {
		if err := s.EventBus.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event bus")
		}
	}
	if s.jetStream != nil {
		if err := s.jetStream.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close JetStream publisher")
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
