package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
)

// GetAgentByID fetches an agent definition.
func (c *Client) GetAgentByID(ctx context.Context, agentID string) (*types.Agent, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, core.NewValidationError("agent id must not be empty", "agent_id")
	}
	var agent types.Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// NewChat creates a chat bound to the agent.
func (c *Client) NewChat(ctx context.Context, agentID string) (*types.Chat, error) {
	var chat types.Chat
	if err := c.do(ctx, http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/chat", struct{}{}, &chat); err != nil {
		return nil, err
	}
	if strings.TrimSpace(chat.ID) == "" {
		return nil, core.NewAPIError("chat response is missing an id")
	}
	return &chat, nil
}

// PostChat sends the transcript and returns the assistant answer.
func (c *Client) PostChat(ctx context.Context, agentID, chatID string, payload types.ChatPayload) (*types.ChatResponse, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/chat/" + url.PathEscape(chatID)
	var resp types.ChatResponse
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateRating rates a message in a chat.
func (c *Client) CreateRating(ctx context.Context, agentID, chatID string, payload types.RatingPayload) (*types.Rating, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/chat/" + url.PathEscape(chatID) + "/ratings"
	var rating types.Rating
	if err := c.do(ctx, http.MethodPost, path, payload, &rating); err != nil {
		return nil, err
	}
	return &rating, nil
}

// UpdateRating replaces an existing rating.
func (c *Client) UpdateRating(ctx context.Context, agentID, chatID, ratingID string, payload types.RatingPayload) (*types.Rating, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/chat/" + url.PathEscape(chatID) + "/ratings/" + url.PathEscape(ratingID)
	var rating types.Rating
	if err := c.do(ctx, http.MethodPatch, path, payload, &rating); err != nil {
		return nil, err
	}
	return &rating, nil
}

// DeleteRating removes a rating.
func (c *Client) DeleteRating(ctx context.Context, agentID, chatID, ratingID string) error {
	path := "/agents/" + url.PathEscape(agentID) + "/chat/" + url.PathEscape(chatID) + "/ratings/" + url.PathEscape(ratingID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetKnowledge fetches a knowledge base definition.
func (c *Client) GetKnowledge(ctx context.Context, knowledgeID string) (*types.Knowledge, error) {
	var knowledge types.Knowledge
	if err := c.do(ctx, http.MethodGet, "/knowledge/"+url.PathEscape(knowledgeID), nil, &knowledge); err != nil {
		return nil, err
	}
	return &knowledge, nil
}
