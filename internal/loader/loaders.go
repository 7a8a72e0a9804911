package loader

import (
	"context"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

// Loaders bundles the batch loaders for one request.
type Loaders struct {
	Users           *Loader[string, *domain.User]
	ChartTags       *Loader[string, []*domain.Tag]
	ChartExtensions *Loader[string, []*domain.Extension]
	ReactionCounts  *Loader[string, int]
	CallerReactions *Loader[string, *domain.Reaction]
}

// NewLoaders constructs the loader set for a request. callerID may be empty for
// anonymous requests, in which case the caller-reaction loader always
// resolves to nil.
func NewLoaders(store *sqlite.Store, callerID string) *Loaders {
	return &Loaders{
		Users: New(func(ctx context.Context, ids []string) (map[string]*domain.User, error) {
			return store.GetUsersByIDs(ctx, ids)
		}),
		ChartTags: New(func(ctx context.Context, chartIDs []string) (map[string][]*domain.Tag, error) {
			return store.GetTagsByChartIDs(ctx, chartIDs)
		}),
		ChartExtensions: New(func(ctx context.Context, chartIDs []string) (map[string][]*domain.Extension, error) {
			return store.GetExtensionsByChartIDs(ctx, chartIDs)
		}),
		ReactionCounts: New(func(ctx context.Context, chartIDs []string) (map[string]int, error) {
			return store.GetReactionCountsByChartIDs(ctx, chartIDs)
		}),
		CallerReactions: New(func(ctx context.Context, chartIDs []string) (map[string]*domain.Reaction, error) {
			if callerID == "" {
				return map[string]*domain.Reaction{}, nil
			}
			return store.GetUserReactionsByChartIDs(ctx, callerID, chartIDs)
		}),
	}
}

type contextKey struct{}

// WithLoaders attaches a loader set to the context.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the request's loader set, or nil when none is attached.
func FromContext(ctx context.Context) *Loaders {
	l, _ := ctx.Value(contextKey{}).(*Loaders)
	return l
}
