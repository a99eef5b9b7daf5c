package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"gorm.io/gorm"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/GideonBature/nodegaze-sub000/config"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/db/migrations"
	"github.com/GideonBature/nodegaze-sub000/events"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/logger"
	"github.com/GideonBature/nodegaze-sub000/notifications"
	"github.com/GideonBature/nodegaze-sub000/pkg/prices"
	"github.com/GideonBature/nodegaze-sub000/pkg/version"
)

type Service struct {
	cfg *config.AppConfig

	db         *gorm.DB
	collector  *events.Collector
	dispatcher *notifications.Dispatcher
	eventSvc   *events.EventService
	prices     *prices.Converter

	ctx context.Context

	clientsMtx sync.RWMutex
	clients    map[uint]*nodeConnection
}

type nodeConnection struct {
	client lnclient.LNClient
	cancel context.CancelFunc
}

func NewService(ctx context.Context) (*Service, error) {
	// Load config from environment variables / .env file
	godotenv.Load(".env")
	appConfig := &config.AppConfig{}
	err := envconfig.Process("", appConfig)
	if err != nil {
		return nil, err
	}

	logger.Init(appConfig.LogLevel)
	logger.Logger.Info().Msg("NodeGaze " + version.Tag)

	if appConfig.Workdir == "" {
		appConfig.Workdir = filepath.Join(xdg.DataHome, "/nodegaze")
		logger.Logger.Info().Str("workdir", appConfig.Workdir).Msg("No workdir specified, using default")
	}
	os.MkdirAll(appConfig.Workdir, os.ModePerm)

	if appConfig.LogToFile {
		err = logger.AddFileLogger(appConfig.Workdir)
		if err != nil {
			return nil, err
		}
	}

	// If DATABASE_URI is a URI or a path, leave it unchanged.
	// If it only contains a filename, prepend the workdir.
	if !strings.HasPrefix(appConfig.DatabaseUri, "file:") {
		databasePath, _ := filepath.Split(appConfig.DatabaseUri)
		if databasePath == "" {
			appConfig.DatabaseUri = filepath.Join(appConfig.Workdir, appConfig.DatabaseUri)
		}
	}

	gormDB, err := db.NewDB(appConfig.DatabaseUri, appConfig.LogDBQueries)
	if err != nil {
		return nil, err
	}
	if err := migrations.Migrate(gormDB); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to migrate database")
		return nil, err
	}

	collector := events.NewCollector()
	dispatcher := notifications.NewDispatcher(0)

	svc := &Service{
		cfg:        appConfig,
		ctx:        ctx,
		db:         gormDB,
		collector:  collector,
		dispatcher: dispatcher,
		eventSvc:   events.NewEventService(gormDB, collector, dispatcher),
		prices:     prices.NewConverter(appConfig.MempoolApi),
		clients:    make(map[uint]*nodeConnection),
	}

	go svc.eventSvc.Run(ctx)

	return svc, nil
}

func (svc *Service) DB() *gorm.DB {
	return svc.db
}

func (svc *Service) Config() *config.AppConfig {
	return svc.cfg
}

func (svc *Service) Prices() *prices.Converter {
	return svc.prices
}

// GetClient returns the live connection for a node, if any.
func (svc *Service) GetClient(nodeId uint) (lnclient.LNClient, bool) {
	svc.clientsMtx.RLock()
	defer svc.clientsMtx.RUnlock()
	conn, ok := svc.clients[nodeId]
	if !ok {
		return nil, false
	}
	return conn.client, true
}

// Shutdown disconnects every node and drains the dispatcher.
func (svc *Service) Shutdown() {
	svc.clientsMtx.Lock()
	for nodeId, conn := range svc.clients {
		conn.cancel()
		if err := conn.client.Shutdown(); err != nil {
			logger.Logger.Error().Err(err).Uint("node_id", nodeId).Msg("Failed to shut down node client")
		}
	}
	svc.clients = make(map[uint]*nodeConnection)
	svc.clientsMtx.Unlock()

	svc.dispatcher.Shutdown()
	logger.Logger.Info().Msg("Service shut down")
}
