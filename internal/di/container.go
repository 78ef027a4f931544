// Package di provides dependency injection configuration for the Voiceline server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bluefxvideo/voiceline-server/internal/config"
	"github.com/bluefxvideo/voiceline-server/internal/di/providers"
	"github.com/bluefxvideo/voiceline-server/internal/logger"
	"github.com/bluefxvideo/voiceline-server/internal/service"
	"github.com/bluefxvideo/voiceline-server/internal/speech"
	"github.com/bluefxvideo/voiceline-server/internal/syncstate"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Voice pipeline
	do.Provide(injector, providers.ProvideSpeechClient)
	do.Provide(injector, providers.ProvideRegenerateLimiter)

	// Business services
	do.Provide(injector, providers.ProvideTrackerRegistry)
	do.Provide(injector, providers.ProvideTimelineService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*speech.Client](injector)
	_ = do.MustInvoke[*providers.RegenerateLimiterHandle](injector)
	_ = do.MustInvoke[*syncstate.Registry](injector)
	_ = do.MustInvoke[*service.TimelineService](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
