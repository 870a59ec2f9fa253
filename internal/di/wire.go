//go:build wireinject
// +build wireinject

package di

import (
	"github.com/itsgiddd/Horus/pkg/config"
	"github.com/itsgiddd/Horus/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideRandom,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories and services
		ProvideMarketData,
		ProvideCandleStore,
		ProvideForecastStore,
		ProvideForecastPublisher,

		// Use cases
		ProvideForecasterPool,
		ProvideForecastUseCase,
		ProvideScenarioUseCase,
		ProvideSignalsUseCase,
		ProvideCandlesUseCase,
		ProvideTrainingUseCase,
		ProvideAutoTrainer,

		// HTTP surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
