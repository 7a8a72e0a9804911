package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/chordseqapp/chordseq-server/internal/api"
	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/config"
	"github.com/chordseqapp/chordseq-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	apiServer *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.apiServer.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	services := &api.Services{
		Tokens:     do.MustInvoke[*auth.TokenService](i),
		User:       do.MustInvoke[*service.UserService](i),
		Tag:        do.MustInvoke[*service.TagService](i),
		Chart:      do.MustInvoke[*service.ChartService](i),
		Reaction:   do.MustInvoke[*service.ReactionService](i),
		Invitation: do.MustInvoke[*service.InvitationService](i),
		Policy:     do.MustInvoke[*service.PolicyService](i),
		Media:      do.MustInvoke[*service.MediaService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, api.Options{
		Name:           cfg.Server.Name,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, apiServer: handler}, nil
}
