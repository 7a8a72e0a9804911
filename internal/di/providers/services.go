package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/media"
	"github.com/chordseqapp/chordseq-server/internal/service"
)

// ProvideAuthzService provides the authorization service.
func ProvideAuthzService(i do.Injector) (*service.AuthzService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewAuthzService(storeHandle.Store, log), nil
}

// ProvideUserService provides the user account service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewUserService(storeHandle.Store, tokens, log), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	authz := do.MustInvoke[*service.AuthzService](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewTagService(storeHandle.Store, authz, log), nil
}

// ProvideChartService provides the chart service.
func ProvideChartService(i do.Injector) (*service.ChartService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	authz := do.MustInvoke[*service.AuthzService](i)
	tags := do.MustInvoke[*service.TagService](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewChartService(storeHandle.Store, authz, tags, log), nil
}

// ProvideReactionService provides the reaction service.
func ProvideReactionService(i do.Injector) (*service.ReactionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewReactionService(storeHandle.Store, log), nil
}

// ProvideInvitationService provides the invitation service.
func ProvideInvitationService(i do.Injector) (*service.InvitationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	authz := do.MustInvoke[*service.AuthzService](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewInvitationService(storeHandle.Store, authz, tokens, log), nil
}

// ProvidePolicyService provides the policy service.
func ProvidePolicyService(i do.Injector) (*service.PolicyService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	authz := do.MustInvoke[*service.AuthzService](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewPolicyService(storeHandle.Store, authz, log), nil
}

// ProvideMediaService provides the media service.
func ProvideMediaService(i do.Injector) (*service.MediaService, error) {
	storage := do.MustInvoke[*media.Storage](i)
	log := do.MustInvoke[*slog.Logger](i)
	return service.NewMediaService(storage, log), nil
}
