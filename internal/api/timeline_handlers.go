package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bluefxvideo/voiceline-server/internal/align"
	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/service"
)

func (s *Server) registerTimelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createTimeline",
		Method:      http.MethodPost,
		Path:        "/api/v1/timelines",
		Summary:     "Create timeline",
		Description: "Creates a timeline from script-breakdown segments with estimated timings",
		Tags:        []string{"Timelines"},
	}, s.handleCreateTimeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTimelines",
		Method:      http.MethodGet,
		Path:        "/api/v1/timelines",
		Summary:     "List timelines",
		Description: "Returns all timelines",
		Tags:        []string{"Timelines"},
	}, s.handleListTimelines)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTimeline",
		Method:      http.MethodGet,
		Path:        "/api/v1/timelines/{id}",
		Summary:     "Get timeline",
		Description: "Returns a timeline by ID",
		Tags:        []string{"Timelines"},
	}, s.handleGetTimeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTimeline",
		Method:      http.MethodDelete,
		Path:        "/api/v1/timelines/{id}",
		Summary:     "Delete timeline",
		Description: "Deletes a timeline and cancels any in-flight regeneration",
		Tags:        []string{"Timelines"},
	}, s.handleDeleteTimeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "attachTranscript",
		Method:      http.MethodPost,
		Path:        "/api/v1/timelines/{id}/transcript",
		Summary:     "Attach transcript",
		Description: "Aligns a speech-to-text transcript against the timeline and replaces the estimated timings",
		Tags:        []string{"Sync"},
	}, s.handleAttachTranscript)

	huma.Register(s.api, huma.Operation{
		OperationID: "editSegment",
		Method:      http.MethodPatch,
		Path:        "/api/v1/timelines/{id}/segments/{segmentID}",
		Summary:     "Edit segment",
		Description: "Updates a segment's narration text and marks the timeline out of sync",
		Tags:        []string{"Timelines"},
	}, s.handleEditSegment)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncState",
		Method:      http.MethodGet,
		Path:        "/api/v1/timelines/{id}/sync",
		Summary:     "Get sync state",
		Description: "Returns the timeline's sync state and dirty segment IDs",
		Tags:        []string{"Sync"},
	}, s.handleGetSyncState)

	huma.Register(s.api, huma.Operation{
		OperationID: "requestRegenerate",
		Method:      http.MethodPost,
		Path:        "/api/v1/timelines/{id}/regenerate",
		Summary:     "Request regeneration",
		Description: "Starts an asynchronous narration regeneration for the dirty segments",
		Tags:        []string{"Sync"},
	}, s.handleRequestRegenerate)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelRegenerate",
		Method:      http.MethodDelete,
		Path:        "/api/v1/timelines/{id}/regenerate",
		Summary:     "Cancel regeneration",
		Description: "Cancels the in-flight regeneration run",
		Tags:        []string{"Sync"},
	}, s.handleCancelRegenerate)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCaptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/timelines/{id}/captions",
		Summary:     "Get captions",
		Description: "Returns caption chunks, optionally re-chunked with custom display bounds",
		Tags:        []string{"Captions"},
	}, s.handleGetCaptions)
}

// === DTOs ===

// SegmentRequest is one narration segment in a create request.
type SegmentRequest struct {
	Text        string  `json:"text" validate:"required,min=1" doc:"Narration text"`
	ImagePrompt string  `json:"image_prompt,omitempty" doc:"Visual prompt for this segment"`
	StartTime   float64 `json:"start_time" validate:"gte=0" doc:"Estimated start in seconds"`
	EndTime     float64 `json:"end_time" validate:"gtefield=StartTime" doc:"Estimated end in seconds"`
}

// CreateTimelineRequest is the request body for creating a timeline.
type CreateTimelineRequest struct {
	Title    string           `json:"title,omitempty" validate:"max=200" doc:"Timeline title"`
	Segments []SegmentRequest `json:"segments" validate:"required,min=1,dive" doc:"Script-breakdown segments in narration order"`
}

// CreateTimelineInput wraps the create timeline request for Huma.
type CreateTimelineInput struct {
	Body CreateTimelineRequest
}

// TimelineResponse contains timeline data in API responses.
type TimelineResponse struct {
	ID               string                    `json:"id" doc:"Timeline ID"`
	Title            string                    `json:"title,omitempty" doc:"Timeline title"`
	CreatedAt        time.Time                 `json:"created_at" doc:"Creation time"`
	UpdatedAt        time.Time                 `json:"updated_at" doc:"Last update time"`
	Segments         []domain.NarrationSegment `json:"segments" doc:"Narration segments with script text"`
	Realigned        []domain.RealignedSegment `json:"realigned,omitempty" doc:"Gapless realigned segments from the last alignment"`
	Captions         []domain.CaptionChunk     `json:"captions,omitempty" doc:"Caption chunks from the last alignment"`
	SyncState        string                    `json:"sync_state" doc:"synced, out_of_sync, or regenerating"`
	DirtySegmentIDs  []string                  `json:"dirty_segment_ids,omitempty" doc:"Segments edited since the last successful sync"`
	LastSyncError    string                    `json:"last_sync_error,omitempty" doc:"Error from the last failed regeneration"`
	TotalDurationSec float64                   `json:"total_duration_sec" doc:"Timeline duration in seconds"`
}

// TimelineOutput wraps the timeline response for Huma.
type TimelineOutput struct {
	Body TimelineResponse
}

// ListTimelinesResponse contains a list of timelines.
type ListTimelinesResponse struct {
	Timelines []TimelineResponse `json:"timelines" doc:"All timelines"`
}

// ListTimelinesOutput wraps the list timelines response for Huma.
type ListTimelinesOutput struct {
	Body ListTimelinesResponse
}

// GetTimelineInput contains parameters for getting a timeline.
type GetTimelineInput struct {
	ID string `path:"id" doc:"Timeline ID"`
}

// DeleteTimelineInput contains parameters for deleting a timeline.
type DeleteTimelineInput struct {
	ID string `path:"id" doc:"Timeline ID"`
}

// AttachTranscriptInput carries the raw transcript body. The transcript
// format varies by speech provider, so the body is parsed leniently rather
// than bound to a fixed schema.
type AttachTranscriptInput struct {
	ID      string `path:"id" doc:"Timeline ID"`
	RawBody []byte `doc:"Transcript JSON with per-word timings"`
}

// EditSegmentRequest is the request body for editing a segment.
type EditSegmentRequest struct {
	Text        string `json:"text" validate:"required,min=1" doc:"Replacement narration text"`
	ImagePrompt string `json:"image_prompt,omitempty" doc:"Replacement visual prompt"`
}

// EditSegmentInput wraps the edit segment request for Huma.
type EditSegmentInput struct {
	ID        string `path:"id" doc:"Timeline ID"`
	SegmentID string `path:"segmentID" doc:"Segment ID"`
	Body      EditSegmentRequest
}

// SyncStateResponse contains the timeline's sync snapshot.
type SyncStateResponse struct {
	State           string   `json:"state" doc:"synced, out_of_sync, or regenerating"`
	DirtySegmentIDs []string `json:"dirty_segment_ids,omitempty" doc:"Segments awaiting regeneration"`
	Epoch           uint64   `json:"epoch" doc:"Monotonic regeneration run counter"`
	LastError       string   `json:"last_error,omitempty" doc:"Error from the last failed run"`
}

// SyncStateOutput wraps the sync state response for Huma.
type SyncStateOutput struct {
	Body SyncStateResponse
}

// SyncStateInput contains parameters for sync operations.
type SyncStateInput struct {
	ID string `path:"id" doc:"Timeline ID"`
}

// CaptionOptionsRequest holds caption display bound overrides.
type CaptionOptionsRequest struct {
	MaxWords    int     `json:"max_words" validate:"omitempty,gte=1,lte=20"`
	MaxChars    int     `json:"max_chars" validate:"omitempty,gte=8,lte=120"`
	MinDuration float64 `json:"min_duration" validate:"omitempty,gt=0"`
	MaxDuration float64 `json:"max_duration" validate:"omitempty,gt=0,gtefield=MinDuration"`
}

// GetCaptionsInput contains parameters for fetching captions. When any bound
// override is set, captions are re-chunked on the fly from the stored word
// timings instead of returning the persisted chunks.
type GetCaptionsInput struct {
	ID          string  `path:"id" doc:"Timeline ID"`
	MaxWords    int     `query:"max_words" doc:"Override: max words per chunk"`
	MaxChars    int     `query:"max_chars" doc:"Override: max characters per line"`
	MinDuration float64 `query:"min_duration" doc:"Override: min chunk duration in seconds"`
	MaxDuration float64 `query:"max_duration" doc:"Override: max chunk duration in seconds"`
}

// CaptionsResponse contains caption chunks.
type CaptionsResponse struct {
	Captions []domain.CaptionChunk `json:"captions" doc:"Caption chunks in display order"`
	Total    int                   `json:"total" doc:"Number of chunks"`
}

// CaptionsOutput wraps the captions response for Huma.
type CaptionsOutput struct {
	Body CaptionsResponse
}

// MessageResponse contains a simple operation result message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func toTimelineResponse(tl *domain.Timeline) TimelineResponse {
	return TimelineResponse{
		ID:               tl.ID,
		Title:            tl.Title,
		CreatedAt:        tl.CreatedAt,
		UpdatedAt:        tl.UpdatedAt,
		Segments:         tl.Segments,
		Realigned:        tl.Realigned,
		Captions:         tl.Captions,
		SyncState:        string(tl.SyncState),
		DirtySegmentIDs:  tl.DirtySegmentIDs,
		LastSyncError:    tl.LastSyncError,
		TotalDurationSec: tl.TotalDurationSec(),
	}
}

// === Handlers ===

func (s *Server) handleCreateTimeline(ctx context.Context, input *CreateTimelineInput) (*TimelineOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	segments := make([]service.SegmentInput, len(input.Body.Segments))
	for i, seg := range input.Body.Segments {
		segments[i] = service.SegmentInput{
			Text:        seg.Text,
			ImagePrompt: seg.ImagePrompt,
			StartTime:   seg.StartTime,
			EndTime:     seg.EndTime,
		}
	}

	tl, err := s.timelines.CreateTimeline(ctx, input.Body.Title, segments)
	if err != nil {
		return nil, err
	}

	return &TimelineOutput{Body: toTimelineResponse(tl)}, nil
}

func (s *Server) handleListTimelines(ctx context.Context, _ *struct{}) (*ListTimelinesOutput, error) {
	timelines, err := s.timelines.ListTimelines(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]TimelineResponse, len(timelines))
	for i, tl := range timelines {
		resp[i] = toTimelineResponse(tl)
	}

	return &ListTimelinesOutput{Body: ListTimelinesResponse{Timelines: resp}}, nil
}

func (s *Server) handleGetTimeline(ctx context.Context, input *GetTimelineInput) (*TimelineOutput, error) {
	tl, err := s.timelines.GetTimeline(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &TimelineOutput{Body: toTimelineResponse(tl)}, nil
}

func (s *Server) handleDeleteTimeline(ctx context.Context, input *DeleteTimelineInput) (*MessageOutput, error) {
	if err := s.timelines.DeleteTimeline(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Timeline deleted"}}, nil
}

func (s *Server) handleAttachTranscript(ctx context.Context, input *AttachTranscriptInput) (*TimelineOutput, error) {
	tl, err := s.timelines.AttachTranscript(ctx, input.ID, input.RawBody)
	if err != nil {
		return nil, err
	}

	return &TimelineOutput{Body: toTimelineResponse(tl)}, nil
}

func (s *Server) handleEditSegment(ctx context.Context, input *EditSegmentInput) (*TimelineOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	tl, err := s.timelines.EditSegment(ctx, input.ID, input.SegmentID, input.Body.Text, input.Body.ImagePrompt)
	if err != nil {
		return nil, err
	}

	return &TimelineOutput{Body: toTimelineResponse(tl)}, nil
}

func (s *Server) handleGetSyncState(ctx context.Context, input *SyncStateInput) (*SyncStateOutput, error) {
	snap, err := s.timelines.SyncState(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SyncStateOutput{
		Body: SyncStateResponse{
			State:           string(snap.State),
			DirtySegmentIDs: snap.DirtySegmentIDs,
			Epoch:           snap.Epoch,
			LastError:       snap.LastError,
		},
	}, nil
}

func (s *Server) handleRequestRegenerate(ctx context.Context, input *SyncStateInput) (*SyncStateOutput, error) {
	snap, err := s.timelines.RequestRegenerate(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SyncStateOutput{
		Body: SyncStateResponse{
			State:           string(snap.State),
			DirtySegmentIDs: snap.DirtySegmentIDs,
			Epoch:           snap.Epoch,
			LastError:       snap.LastError,
		},
	}, nil
}

func (s *Server) handleCancelRegenerate(ctx context.Context, input *SyncStateInput) (*SyncStateOutput, error) {
	snap, err := s.timelines.CancelRegenerate(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SyncStateOutput{
		Body: SyncStateResponse{
			State:           string(snap.State),
			DirtySegmentIDs: snap.DirtySegmentIDs,
			Epoch:           snap.Epoch,
			LastError:       snap.LastError,
		},
	}, nil
}

func (s *Server) handleGetCaptions(ctx context.Context, input *GetCaptionsInput) (*CaptionsOutput, error) {
	overrides := CaptionOptionsRequest{
		MaxWords:    input.MaxWords,
		MaxChars:    input.MaxChars,
		MinDuration: input.MinDuration,
		MaxDuration: input.MaxDuration,
	}

	var captions []domain.CaptionChunk
	var err error

	if overrides == (CaptionOptionsRequest{}) {
		captions, err = s.timelines.Captions(ctx, input.ID)
	} else {
		if err := s.validator.Validate(overrides); err != nil {
			return nil, err
		}
		captions, err = s.timelines.RechunkCaptions(ctx, input.ID, align.ChunkOptions{
			MaxWordsPerChunk: overrides.MaxWords,
			MaxCharsPerLine:  overrides.MaxChars,
			MinChunkDuration: overrides.MinDuration,
			MaxChunkDuration: overrides.MaxDuration,
		})
	}
	if err != nil {
		return nil, err
	}

	return &CaptionsOutput{Body: CaptionsResponse{Captions: captions, Total: len(captions)}}, nil
}
