package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/errors"
	"github.com/hpungsan/tether/internal/pipeline"
	"github.com/hpungsan/tether/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store     store.Store
	pipeline  *pipeline.Lazy
	selection store.Selection
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st store.Store, p *pipeline.Lazy, sel store.Selection) *Handlers {
	return &Handlers{store: st, pipeline: p, selection: sel}
}

// Fields are the caller-editable connection fields shared by create and update.
type Fields struct {
	GuestEmail           *string   `json:"guestEmail,omitempty"`
	HostEmail            *string   `json:"hostEmail,omitempty"`
	LocationLat          *float64  `json:"locationLat,omitempty"`
	LocationLng          *float64  `json:"locationLng,omitempty"`
	VibeDepth            *int      `json:"vibeDepth,omitempty"`
	VibeHeart            *int      `json:"vibeHeart,omitempty"`
	GuestConsented       *bool     `json:"guestConsented,omitempty"`
	AudioData            *string   `json:"audioData,omitempty"`
	AudioDurationSeconds *int      `json:"audioDurationSeconds,omitempty"`
	QuestionsAsked       *[]string `json:"questionsAsked,omitempty"`
	NPSScore             *int      `json:"npsScore,omitempty"`
	FeedbackText         *string   `json:"feedbackText,omitempty"`
	ReminderSent         *bool     `json:"reminderSent,omitempty"`
}

func (f Fields) patch() connection.Patch {
	return connection.Patch{
		GuestEmail:           f.GuestEmail,
		HostEmail:            f.HostEmail,
		LocationLat:          f.LocationLat,
		LocationLng:          f.LocationLng,
		VibeDepth:            f.VibeDepth,
		VibeHeart:            f.VibeHeart,
		GuestConsented:       f.GuestConsented,
		AudioData:            f.AudioData,
		AudioDurationSeconds: f.AudioDurationSeconds,
		QuestionsAsked:       f.QuestionsAsked,
		NPSScore:             f.NPSScore,
		FeedbackText:         f.FeedbackText,
		ReminderSent:         f.ReminderSent,
	}
}

// CreateRequest represents the arguments for connection_create.
type CreateRequest struct {
	HostID        string `json:"hostId"`
	IntentionText string `json:"intentionText"`
	Fields
}

// UpdateRequest represents the arguments for connection_update.
type UpdateRequest struct {
	ID            string  `json:"id"`
	IntentionText *string `json:"intentionText,omitempty"`
	Fields
}

// IDRequest represents the arguments for tools addressing one connection.
type IDRequest struct {
	ID string `json:"id"`
}

// PosterRequest represents the arguments for connection_poster.
type PosterRequest struct {
	ID    string `json:"id"`
	Async bool   `json:"async,omitempty"`
}

// HandleCreate handles the connection_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	c, err := h.store.Create(ctx, connection.NewInput{
		HostID:        input.HostID,
		IntentionText: input.IntentionText,
		Patch:         input.patch(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleUpdate handles the connection_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := requireID(input.ID); err != nil {
		return errorResult(err), nil
	}

	p := input.patch()
	p.IntentionText = input.IntentionText
	c, err := h.store.Update(ctx, input.ID, p)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleGet handles the connection_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := h.store.Get(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleList handles the connection_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := h.store.GetAll(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"connections": all,
		"count":       len(all),
	})
}

// HandleAnalyze handles the connection_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	p, err := h.pipeline.Get(ctx, connection.StepAnalyze)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := p.Analyze(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePoster handles the connection_poster tool call.
func (h *Handlers) HandlePoster(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PosterRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := requireID(input.ID); err != nil {
		return errorResult(err), nil
	}
	p, err := h.pipeline.Get(ctx, connection.StepPoster)
	if err != nil {
		return errorResult(err), nil
	}

	if input.Async {
		c, err := p.StartPoster(ctx, input.ID)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{
			"status":     "pending",
			"connection": c,
		})
	}

	result, err := p.Poster(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFollowUp handles the connection_followup tool call.
func (h *Handlers) HandleFollowUp(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	p, err := h.pipeline.Get(ctx, connection.StepFollowUp)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := p.FollowUp(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHealth handles the connection_health tool call.
func (h *Handlers) HandleHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.selection)
}

func decodeID(req mcp.CallToolRequest) (IDRequest, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return input, errors.NewValidation(err.Error())
	}
	return input, requireID(input.ID)
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidation("id is required")
	}
	return nil
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal and storage causes are not exposed; they may carry DSNs or file paths.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    string(errors.ErrInternal),
		"message": "an internal error occurred",
		"status":  500,
	}

	var tErr *errors.TetherError
	if stderrors.As(err, &tErr) {
		errorObj["code"] = string(tErr.Code)
		errorObj["status"] = tErr.Status
		switch tErr.Code {
		case errors.ErrInternal:
		case errors.ErrStorage:
			errorObj["message"] = "storage error"
		default:
			errorObj["message"] = tErr.Message
			if tErr.Details != nil {
				errorObj["details"] = tErr.Details
			}
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
