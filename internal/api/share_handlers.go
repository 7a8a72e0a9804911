package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/service"
)

func (s *Server) registerShareRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createInvitation",
		Method:      http.MethodPost,
		Path:        "/api/v1/invitations",
		Summary:     "Create invitation",
		Description: "Mints a signed invitation token for a resource the caller owns",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listInvitations",
		Method:      http.MethodGet,
		Path:        "/api/v1/invitations",
		Summary:     "List invitations",
		Description: "Lists outstanding invitations for a resource the caller owns",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListInvitations)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteInvitation",
		Method:      http.MethodDelete,
		Path:        "/api/v1/invitations/{id}",
		Summary:     "Revoke invitation",
		Description: "Revokes an invitation, invalidating every copy of its token",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptInvitation",
		Method:      http.MethodPost,
		Path:        "/api/v1/invitations/accept",
		Summary:     "Accept invitation",
		Description: "Redeems an invitation token, granting the caller access to the shared resource",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAcceptInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "createPolicy",
		Method:      http.MethodPost,
		Path:        "/api/v1/policies",
		Summary:     "Create policy",
		Description: "Grants a user direct access to a resource the caller owns",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreatePolicy)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPolicies",
		Method:      http.MethodGet,
		Path:        "/api/v1/policies",
		Summary:     "List policies",
		Description: "Lists active policies on a resource the caller owns",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListPolicies)

	huma.Register(s.api, huma.Operation{
		OperationID: "listGrants",
		Method:      http.MethodGet,
		Path:        "/api/v1/policies/grants",
		Summary:     "List grants",
		Description: "Lists active policies where the caller is the grantee",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListGrants)

	huma.Register(s.api, huma.Operation{
		OperationID: "deletePolicy",
		Method:      http.MethodDelete,
		Path:        "/api/v1/policies/{id}",
		Summary:     "Revoke policy",
		Description: "Revokes a policy, as the resource owner or as the grantee",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeletePolicy)
}

// === DTOs ===

type InvitationResponse struct {
	ID           string     `json:"id" doc:"Invitation ID"`
	ResourceType string     `json:"resource_type" doc:"Shared resource type"`
	ResourceID   string     `json:"resource_id" doc:"Shared resource ID"`
	Action       string     `json:"action" doc:"Granted action: read, write, or *"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" doc:"Expiry of the resulting policy"`
	CreatorID    string     `json:"creator_id" doc:"Inviting user ID"`
	CreatedAt    time.Time  `json:"created_at" doc:"Creation time"`
}

type PolicyResponse struct {
	ID           string     `json:"id" doc:"Policy ID"`
	ResourceType string     `json:"resource_type" doc:"Resource type"`
	ResourceID   string     `json:"resource_id" doc:"Resource ID"`
	GranteeID    string     `json:"grantee_id" doc:"Granted user ID"`
	Action       string     `json:"action" doc:"Granted action: read, write, or *"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" doc:"Expiry time, if any"`
	InvitationID string     `json:"invitation_id,omitempty" doc:"Originating invitation, if redeemed from one"`
	CreatorID    string     `json:"creator_id" doc:"Granting user ID"`
	CreatedAt    time.Time  `json:"created_at" doc:"Creation time"`
}

type CreateInvitationRequest struct {
	ResourceType string     `json:"resource_type" doc:"Shared resource type (tag)"`
	ResourceID   string     `json:"resource_id" doc:"Shared resource ID"`
	Action       string     `json:"action" doc:"Granted action: read, write, or *"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" doc:"Expiry of the resulting policy"`
}

type CreateInvitationInput struct {
	Body CreateInvitationRequest
}

type CreateInvitationResponse struct {
	Invitation InvitationResponse `json:"invitation" doc:"The stored invitation"`
	Token      string             `json:"token" doc:"Signed token to hand to the invitee"`
}

type CreateInvitationOutput struct {
	Body CreateInvitationResponse
}

type ListInvitationsInput struct {
	ResourceType string `query:"resource_type" doc:"Resource type (tag)"`
	ResourceID   string `query:"resource_id" doc:"Resource ID"`
}

type ListInvitationsResponse struct {
	Invitations []InvitationResponse `json:"invitations" doc:"Outstanding invitations"`
}

type ListInvitationsOutput struct {
	Body ListInvitationsResponse
}

type DeleteInvitationInput struct {
	ID string `path:"id" doc:"Invitation ID"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token" doc:"Signed invitation token"`
}

type AcceptInvitationInput struct {
	Body AcceptInvitationRequest
}

type AcceptInvitationResponse struct {
	Tag    TagResponse     `json:"tag" doc:"The shared tag"`
	Policy *PolicyResponse `json:"policy,omitempty" doc:"The resulting policy; absent for self-acceptance"`
}

type AcceptInvitationOutput struct {
	Body AcceptInvitationResponse
}

type CreatePolicyRequest struct {
	ResourceType string     `json:"resource_type" doc:"Resource type (tag)"`
	ResourceID   string     `json:"resource_id" doc:"Resource ID"`
	GranteeID    string     `json:"grantee_id" doc:"User to grant access to"`
	Action       string     `json:"action" doc:"Granted action: read, write, or *"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" doc:"Expiry time"`
}

type CreatePolicyInput struct {
	Body CreatePolicyRequest
}

type PolicyOutput struct {
	Body PolicyResponse
}

type ListPoliciesInput struct {
	ResourceType string `query:"resource_type" doc:"Resource type (tag)"`
	ResourceID   string `query:"resource_id" doc:"Resource ID"`
}

type ListPoliciesResponse struct {
	Policies []PolicyResponse `json:"policies" doc:"Matching policies"`
}

type ListPoliciesOutput struct {
	Body ListPoliciesResponse
}

type DeletePolicyInput struct {
	ID string `path:"id" doc:"Policy ID"`
}

// === Handlers ===

func (s *Server) handleCreateInvitation(ctx context.Context, input *CreateInvitationInput) (*CreateInvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Invitation.CreateInvitation(ctx, userID, service.CreateInvitationRequest{
		ResourceType: input.Body.ResourceType,
		ResourceID:   input.Body.ResourceID,
		Action:       input.Body.Action,
		ExpiresAt:    input.Body.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	return &CreateInvitationOutput{Body: CreateInvitationResponse{
		Invitation: mapInvitationResponse(result.Invitation),
		Token:      result.Token,
	}}, nil
}

func (s *Server) handleListInvitations(ctx context.Context, input *ListInvitationsInput) (*ListInvitationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	invitations, err := s.services.Invitation.ListInvitations(ctx, userID, domain.ResourceType(input.ResourceType), input.ResourceID)
	if err != nil {
		return nil, err
	}

	resp := make([]InvitationResponse, len(invitations))
	for i, inv := range invitations {
		resp[i] = mapInvitationResponse(inv)
	}
	return &ListInvitationsOutput{Body: ListInvitationsResponse{Invitations: resp}}, nil
}

func (s *Server) handleDeleteInvitation(ctx context.Context, input *DeleteInvitationInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Invitation.DeleteInvitation(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Invitation revoked"}}, nil
}

func (s *Server) handleAcceptInvitation(ctx context.Context, input *AcceptInvitationInput) (*AcceptInvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Invitation.AcceptInvitation(ctx, userID, input.Body.Token)
	if err != nil {
		return nil, err
	}

	resp := AcceptInvitationResponse{Tag: mapTagResponse(result.Tag)}
	if result.Policy != nil {
		policy := mapPolicyResponse(result.Policy)
		resp.Policy = &policy
	}
	return &AcceptInvitationOutput{Body: resp}, nil
}

func (s *Server) handleCreatePolicy(ctx context.Context, input *CreatePolicyInput) (*PolicyOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	policy, err := s.services.Policy.CreatePolicy(ctx, userID, service.CreatePolicyRequest{
		ResourceType: input.Body.ResourceType,
		ResourceID:   input.Body.ResourceID,
		GranteeID:    input.Body.GranteeID,
		Action:       input.Body.Action,
		ExpiresAt:    input.Body.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	return &PolicyOutput{Body: mapPolicyResponse(policy)}, nil
}

func (s *Server) handleListPolicies(ctx context.Context, input *ListPoliciesInput) (*ListPoliciesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	policies, err := s.services.Policy.ListPolicies(ctx, userID, domain.ResourceType(input.ResourceType), input.ResourceID)
	if err != nil {
		return nil, err
	}

	return &ListPoliciesOutput{Body: ListPoliciesResponse{Policies: mapPolicyResponses(policies)}}, nil
}

func (s *Server) handleListGrants(ctx context.Context, _ *struct{}) (*ListPoliciesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	policies, err := s.services.Policy.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ListPoliciesOutput{Body: ListPoliciesResponse{Policies: mapPolicyResponses(policies)}}, nil
}

func (s *Server) handleDeletePolicy(ctx context.Context, input *DeletePolicyInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Policy.DeletePolicy(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Policy revoked"}}, nil
}

// === Mappers ===

func mapInvitationResponse(inv *domain.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:           inv.ID,
		ResourceType: string(inv.ResourceType),
		ResourceID:   inv.ResourceID,
		Action:       string(inv.Action),
		ExpiresAt:    inv.ExpiresAt,
		CreatorID:    inv.CreatorID,
		CreatedAt:    inv.CreatedAt,
	}
}

func mapPolicyResponse(p *domain.Policy) PolicyResponse {
	return PolicyResponse{
		ID:           p.ID,
		ResourceType: string(p.ResourceType),
		ResourceID:   p.ResourceID,
		GranteeID:    p.GranteeID,
		Action:       string(p.Action),
		ExpiresAt:    p.ExpiresAt,
		InvitationID: p.InvitationID,
		CreatorID:    p.CreatorID,
		CreatedAt:    p.CreatedAt,
	}
}

func mapPolicyResponses(policies []*domain.Policy) []PolicyResponse {
	resp := make([]PolicyResponse, len(policies))
	for i, p := range policies {
		resp[i] = mapPolicyResponse(p)
	}
	return resp
}
