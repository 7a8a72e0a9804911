package api

import (
	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Tokens     *auth.TokenService
	User       *service.UserService
	Tag        *service.TagService
	Chart      *service.ChartService
	Reaction   *service.ReactionService
	Invitation *service.InvitationService
	Policy     *service.PolicyService
	Media      *service.MediaService
}
