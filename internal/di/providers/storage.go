package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/chordseqapp/chordseq-server/internal/config"
	"github.com/chordseqapp/chordseq-server/internal/media"
)

// ProvideMediaStorage provides the on-disk media store.
func ProvideMediaStorage(i do.Injector) (*media.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	storage, err := media.NewStorage(cfg.Data.MediaPath())
	if err != nil {
		return nil, err
	}

	log.Info("media storage ready", "path", cfg.Data.MediaPath())
	return storage, nil
}
