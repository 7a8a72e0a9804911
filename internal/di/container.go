// Package di provides dependency injection configuration for the ChordSeq server.
package di

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/config"
	"github.com/chordseqapp/chordseq-server/internal/di/providers"
	"github.com/chordseqapp/chordseq-server/internal/media"
	"github.com/chordseqapp/chordseq-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideMediaStorage)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKeys)
	do.Provide(injector, providers.ProvideKeySet)
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthzService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideChartService)
	do.Provide(injector, providers.ProvideReactionService)
	do.Provide(injector, providers.ProvideInvitationService)
	do.Provide(injector, providers.ProvidePolicyService)
	do.Provide(injector, providers.ProvideMediaService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap triggers lazy initialization of every provider, so configuration
// or key problems surface at startup rather than on the first request.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*slog.Logger](injector)

	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*media.Storage](injector)

	_ = do.MustInvoke[*providers.AuthKeys](injector)
	_ = do.MustInvoke[*providers.KeySetHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	_ = do.MustInvoke[*service.AuthzService](injector)
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.ChartService](injector)
	_ = do.MustInvoke[*service.ReactionService](injector)
	_ = do.MustInvoke[*service.InvitationService](injector)
	_ = do.MustInvoke[*service.PolicyService](injector)
	_ = do.MustInvoke[*service.MediaService](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
