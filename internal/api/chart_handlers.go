package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/loader"
	"github.com/chordseqapp/chordseq-server/internal/service"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

func (s *Server) registerChartRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createChart",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts",
		Summary:     "Create chart",
		Description: "Creates a chart owned by the caller, optionally attaching tags",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateChart)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCharts",
		Method:      http.MethodGet,
		Path:        "/api/v1/charts",
		Summary:     "List charts",
		Description: "Runs a chart query under the caller's visibility",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListCharts)

	huma.Register(s.api, huma.Operation{
		OperationID: "getChart",
		Method:      http.MethodGet,
		Path:        "/api/v1/charts/{id}",
		Summary:     "Get chart",
		Description: "Returns a chart visible to the caller",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetChart)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateChart",
		Method:      http.MethodPatch,
		Path:        "/api/v1/charts/{id}",
		Summary:     "Update chart",
		Description: "Updates a chart the caller owns",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateChart)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteChart",
		Method:      http.MethodDelete,
		Path:        "/api/v1/charts/{id}",
		Summary:     "Delete chart",
		Description: "Deletes a chart the caller owns",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteChart)

	huma.Register(s.api, huma.Operation{
		OperationID: "addChartTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{id}/tags",
		Summary:     "Attach tags",
		Description: "Attaches tags to a chart the caller owns",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddChartTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeChartTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/charts/{id}/tags/{tagID}",
		Summary:     "Detach tag",
		Description: "Detaches a tag from a chart the caller owns",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveChartTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "addChartExtensions",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{id}/extensions",
		Summary:     "Attach extensions",
		Description: "Attaches chord extensions to a chart the caller owns",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddChartExtensions)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeChartExtension",
		Method:      http.MethodDelete,
		Path:        "/api/v1/charts/{id}/extensions/{extensionID}",
		Summary:     "Detach extension",
		Description: "Detaches a chord extension from a chart the caller owns",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveChartExtension)

	huma.Register(s.api, huma.Operation{
		OperationID: "reactToChart",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{id}/reactions",
		Summary:     "React to chart",
		Description: "Toggles the caller's reaction on a visible chart",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReactToChart)

	huma.Register(s.api, huma.Operation{
		OperationID: "listExtensions",
		Method:      http.MethodGet,
		Path:        "/api/v1/extensions",
		Summary:     "List extensions",
		Description: "Returns the fixed chord extension reference set",
		Tags:        []string{"Charts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListExtensions)
}

// === DTOs ===

type ExtensionResponse struct {
	ID     string `json:"id" doc:"Extension ID"`
	Name   string `json:"name" doc:"Display name"`
	Symbol string `json:"symbol" doc:"Notation symbol"`
}

type ReactionResponse struct {
	Kind      string    `json:"kind" doc:"Reaction kind"`
	UserID    string    `json:"user_id" doc:"Reacting user ID"`
	CreatedAt time.Time `json:"created_at" doc:"Reaction time"`
}

type ChartResponse struct {
	ID             string              `json:"id" doc:"Chart ID"`
	Kind           string              `json:"kind" doc:"Chart kind: chord or progression"`
	OwnerID        string              `json:"owner_id" doc:"Owning user ID"`
	OwnerName      string              `json:"owner_name,omitempty" doc:"Owner display name"`
	Public         bool                `json:"public" doc:"Whether the chart is visible to everyone"`
	AudioURL       string              `json:"audio_url,omitempty" doc:"Audio attachment URL"`
	ImageURL       string              `json:"image_url,omitempty" doc:"Image attachment URL"`
	Hint           string              `json:"hint,omitempty" doc:"Playing hint"`
	Notes          string              `json:"notes,omitempty" doc:"Free-text notes"`
	Root           string              `json:"root,omitempty" doc:"Root note"`
	Quality        string              `json:"quality,omitempty" doc:"Chord quality"`
	Bass           string              `json:"bass,omitempty" doc:"Bass note"`
	Tags           []TagResponse       `json:"tags,omitempty" doc:"Attached tags"`
	Extensions     []ExtensionResponse `json:"extensions,omitempty" doc:"Attached chord extensions"`
	ReactionCount  int                 `json:"reaction_count" doc:"Total reactions"`
	CallerReaction string              `json:"caller_reaction,omitempty" doc:"The caller's own reaction kind, if any"`
	CreatedAt      time.Time           `json:"created_at" doc:"Creation time"`
	UpdatedAt      time.Time           `json:"updated_at" doc:"Last update time"`
}

type ChartOutput struct {
	Body ChartResponse
}

type CreateChartRequest struct {
	Kind     string   `json:"kind" doc:"Chart kind: chord or progression"`
	Public   bool     `json:"public,omitempty" doc:"Make the chart visible to everyone"`
	AudioURL string   `json:"audio_url,omitempty" doc:"Audio attachment URL"`
	ImageURL string   `json:"image_url,omitempty" doc:"Image attachment URL"`
	Hint     string   `json:"hint,omitempty" doc:"Playing hint"`
	Notes    string   `json:"notes,omitempty" doc:"Free-text notes"`
	Root     string   `json:"root,omitempty" doc:"Root note"`
	Quality  string   `json:"quality,omitempty" doc:"Chord quality"`
	Bass     string   `json:"bass,omitempty" doc:"Bass note"`
	TagIDs   []string `json:"tag_ids,omitempty" doc:"Tags to attach on creation"`
}

type CreateChartInput struct {
	Body CreateChartRequest
}

type ListChartsInput struct {
	TagIDs    []string `query:"tag_ids" doc:"Restrict to charts carrying any of these tags"`
	Kinds     []string `query:"kinds" doc:"Restrict to these chart kinds"`
	Order     string   `query:"order" enum:"created,reactions,position,random" doc:"Sort key (default: created)"`
	Ascending bool     `query:"ascending" doc:"Flip sort direction"`
	After     string   `query:"after" doc:"Pagination cursor: last chart ID of the previous page"`
	Limit     int      `query:"limit" doc:"Page size (max 100)"`
}

type ListChartsResponse struct {
	Charts []ChartResponse `json:"charts" doc:"Matching charts"`
}

type ListChartsOutput struct {
	Body ListChartsResponse
}

type GetChartInput struct {
	ID string `path:"id" doc:"Chart ID"`
}

type UpdateChartRequest struct {
	Public   *bool   `json:"public,omitempty" doc:"Change public visibility"`
	AudioURL *string `json:"audio_url,omitempty" doc:"Audio attachment URL"`
	ImageURL *string `json:"image_url,omitempty" doc:"Image attachment URL"`
	Hint     *string `json:"hint,omitempty" doc:"Playing hint"`
	Notes    *string `json:"notes,omitempty" doc:"Free-text notes"`
	Root     *string `json:"root,omitempty" doc:"Root note"`
	Quality  *string `json:"quality,omitempty" doc:"Chord quality"`
	Bass     *string `json:"bass,omitempty" doc:"Bass note"`
}

type UpdateChartInput struct {
	ID   string `path:"id" doc:"Chart ID"`
	Body UpdateChartRequest
}

type ChartTagsRequest struct {
	TagIDs []string `json:"tag_ids" doc:"Tag IDs to attach"`
}

type ChartTagsInput struct {
	ID   string `path:"id" doc:"Chart ID"`
	Body ChartTagsRequest
}

type RemoveChartTagInput struct {
	ID    string `path:"id" doc:"Chart ID"`
	TagID string `path:"tagID" doc:"Tag ID"`
}

type ChartExtensionsRequest struct {
	ExtensionIDs []string `json:"extension_ids" doc:"Extension IDs to attach"`
}

type ChartExtensionsInput struct {
	ID   string `path:"id" doc:"Chart ID"`
	Body ChartExtensionsRequest
}

type RemoveChartExtensionInput struct {
	ID          string `path:"id" doc:"Chart ID"`
	ExtensionID string `path:"extensionID" doc:"Extension ID"`
}

type ReactRequest struct {
	Kind string `json:"kind" doc:"Reaction kind: star, flag, or smile"`
}

type ReactInput struct {
	ID   string `path:"id" doc:"Chart ID"`
	Body ReactRequest
}

type ReactResponse struct {
	Reaction *ReactionResponse `json:"reaction,omitempty" doc:"The reaction now in effect; null when toggled off"`
}

type ReactOutput struct {
	Body ReactResponse
}

type ListExtensionsResponse struct {
	Extensions []ExtensionResponse `json:"extensions" doc:"Chord extension reference set"`
}

type ListExtensionsOutput struct {
	Body ListExtensionsResponse
}

// === Handlers ===

func (s *Server) handleCreateChart(ctx context.Context, input *CreateChartInput) (*ChartOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	chart, err := s.services.Chart.CreateChart(ctx, userID, service.CreateChartRequest{
		Kind:     input.Body.Kind,
		Public:   input.Body.Public,
		AudioURL: input.Body.AudioURL,
		ImageURL: input.Body.ImageURL,
		Hint:     input.Body.Hint,
		Notes:    input.Body.Notes,
		Root:     input.Body.Root,
		Quality:  input.Body.Quality,
		Bass:     input.Body.Bass,
		TagIDs:   input.Body.TagIDs,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.mapChartResponse(ctx, chart)
	if err != nil {
		return nil, err
	}
	return &ChartOutput{Body: resp}, nil
}

func (s *Server) handleListCharts(ctx context.Context, input *ListChartsInput) (*ListChartsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	kinds := make([]domain.ChartKind, 0, len(input.Kinds))
	for _, k := range input.Kinds {
		kind := domain.ChartKind(k)
		if !kind.Valid() {
			return nil, errors.Validationf("unknown chart kind %q", k)
		}
		kinds = append(kinds, kind)
	}

	charts, err := s.services.Chart.QueryCharts(ctx, userID, sqlite.ChartQuery{
		TagIDs:    input.TagIDs,
		Kinds:     kinds,
		Order:     sqlite.ChartOrder(input.Order),
		Ascending: input.Ascending,
		After:     input.After,
		Limit:     input.Limit,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.mapChartResponses(ctx, charts)
	if err != nil {
		return nil, err
	}
	return &ListChartsOutput{Body: ListChartsResponse{Charts: resp}}, nil
}

func (s *Server) handleGetChart(ctx context.Context, input *GetChartInput) (*ChartOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	chart, err := s.services.Chart.GetChart(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	resp, err := s.mapChartResponse(ctx, chart)
	if err != nil {
		return nil, err
	}
	return &ChartOutput{Body: resp}, nil
}

func (s *Server) handleUpdateChart(ctx context.Context, input *UpdateChartInput) (*ChartOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	chart, err := s.services.Chart.UpdateChart(ctx, userID, input.ID, service.UpdateChartRequest{
		Public:   input.Body.Public,
		AudioURL: input.Body.AudioURL,
		ImageURL: input.Body.ImageURL,
		Hint:     input.Body.Hint,
		Notes:    input.Body.Notes,
		Root:     input.Body.Root,
		Quality:  input.Body.Quality,
		Bass:     input.Body.Bass,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.mapChartResponse(ctx, chart)
	if err != nil {
		return nil, err
	}
	return &ChartOutput{Body: resp}, nil
}

func (s *Server) handleDeleteChart(ctx context.Context, input *GetChartInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Chart.DeleteChart(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Chart deleted"}}, nil
}

func (s *Server) handleAddChartTags(ctx context.Context, input *ChartTagsInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Chart.AddTags(ctx, userID, input.ID, input.Body.TagIDs); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tags attached"}}, nil
}

func (s *Server) handleRemoveChartTag(ctx context.Context, input *RemoveChartTagInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Chart.UnTag(ctx, userID, input.ID, input.TagID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag detached"}}, nil
}

func (s *Server) handleAddChartExtensions(ctx context.Context, input *ChartExtensionsInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Chart.AddExtensions(ctx, userID, input.ID, input.Body.ExtensionIDs); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Extensions attached"}}, nil
}

func (s *Server) handleRemoveChartExtension(ctx context.Context, input *RemoveChartExtensionInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Chart.RemoveExtensions(ctx, userID, input.ID, []string{input.ExtensionID}); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Extension detached"}}, nil
}

func (s *Server) handleReactToChart(ctx context.Context, input *ReactInput) (*ReactOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	reaction, err := s.services.Reaction.React(ctx, userID, input.ID, domain.ReactionKind(input.Body.Kind))
	if err != nil {
		return nil, err
	}

	resp := ReactResponse{}
	if reaction != nil {
		resp.Reaction = &ReactionResponse{
			Kind:      string(reaction.Kind),
			UserID:    reaction.UserID,
			CreatedAt: reaction.CreatedAt,
		}
	}
	return &ReactOutput{Body: resp}, nil
}

func (s *Server) handleListExtensions(ctx context.Context, _ *struct{}) (*ListExtensionsOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	extensions, err := s.services.Chart.ListExtensions(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]ExtensionResponse, len(extensions))
	for i, ext := range extensions {
		resp[i] = mapExtensionResponse(ext)
	}
	return &ListExtensionsOutput{Body: ListExtensionsResponse{Extensions: resp}}, nil
}

// === Mappers ===

func mapExtensionResponse(e *domain.Extension) ExtensionResponse {
	return ExtensionResponse{ID: e.ID, Name: e.Name, Symbol: e.Symbol}
}

func baseChartResponse(c *domain.Chart) ChartResponse {
	return ChartResponse{
		ID:        c.ID,
		Kind:      string(c.Kind),
		OwnerID:   c.OwnerID,
		Public:    domain.IsPublicScope(c.Scope),
		AudioURL:  c.AudioURL,
		ImageURL:  c.ImageURL,
		Hint:      c.Hint,
		Notes:     c.Notes,
		Root:      string(c.Root),
		Quality:   string(c.Quality),
		Bass:      string(c.Bass),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// mapChartResponse enriches one chart with its associations through the
// request's loader set.
func (s *Server) mapChartResponse(ctx context.Context, c *domain.Chart) (ChartResponse, error) {
	responses, err := s.mapChartResponses(ctx, []*domain.Chart{c})
	if err != nil {
		return ChartResponse{}, err
	}
	return responses[0], nil
}

// mapChartResponses enriches a page of charts in one pass. Association
// lookups go through the per-request loaders, so each table is hit once per
// page regardless of page size.
func (s *Server) mapChartResponses(ctx context.Context, charts []*domain.Chart) ([]ChartResponse, error) {
	resp := make([]ChartResponse, len(charts))
	for i, c := range charts {
		resp[i] = baseChartResponse(c)
	}

	loaders := loader.FromContext(ctx)
	if loaders == nil || len(charts) == 0 {
		return resp, nil
	}

	chartIDs := make([]string, len(charts))
	ownerIDs := make([]string, len(charts))
	for i, c := range charts {
		chartIDs[i] = c.ID
		ownerIDs[i] = c.OwnerID
	}

	tags, err := loaders.ChartTags.LoadMany(ctx, chartIDs)
	if err != nil {
		return nil, err
	}
	extensions, err := loaders.ChartExtensions.LoadMany(ctx, chartIDs)
	if err != nil {
		return nil, err
	}
	counts, err := loaders.ReactionCounts.LoadMany(ctx, chartIDs)
	if err != nil {
		return nil, err
	}
	callerReactions, err := loaders.CallerReactions.LoadMany(ctx, chartIDs)
	if err != nil {
		return nil, err
	}
	owners, err := loaders.Users.LoadMany(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	for i, c := range charts {
		for _, tag := range tags[c.ID] {
			resp[i].Tags = append(resp[i].Tags, mapTagResponse(tag))
		}
		for _, ext := range extensions[c.ID] {
			resp[i].Extensions = append(resp[i].Extensions, mapExtensionResponse(ext))
		}
		resp[i].ReactionCount = counts[c.ID]
		if r := callerReactions[c.ID]; r != nil {
			resp[i].CallerReaction = string(r.Kind)
		}
		if owner := owners[c.OwnerID]; owner != nil {
			resp[i].OwnerName = owner.Name()
		}
	}

	return resp, nil
}
