//go:build wireinject
// +build wireinject

package di

import (
	"MarketPull/pkg/config"
	"MarketPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Upstream and infrastructure clients
		ProvideHTTPClient,
		ProvideStore,
		ProvideCache,
		ProvidePublisher,

		// Pipeline pieces
		ProvideSources,
		ProvideHistory,
		ProvideValidator,
		ProvideRunner,

		// HTTP surface
		ProvideObservationsUseCase,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
