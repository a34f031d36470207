//go:build wireinject
// +build wireinject

package di

import (
	"TradeDash/pkg/config"
	"TradeDash/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Feed adapters
		ProvideFeedClient,
		ProvideRawFeed,
		ProvideExecutionFeed,
		ProvideAccountFeed,

		// Core
		ProvideCoordinator,
		ProvideRawStore,
		ProvideExecutionStore,
		ProvideSignalView,
		ProvideAccountView,

		// Optional integrations
		ProvideRedisCache,
		ProvideMirror,
		ProvideClickHouseClient,
		ProvideArchive,
		ProvideIngestPipeline,
		ProvideConsumer,
		ProvideSignalsHandler,
		ProvideCommitPublisher,

		// Interface
		ProvideHub,
		ProvideDashboardHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
