package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// CommentHandler handles HTTP requests for comments and attachments.
type CommentHandler struct {
	commentService ports.CommentService
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(
	commentService ports.CommentService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "comment"),
	}
}

// Router sets up a new chi Router for comment routes.
// These routes are relative to /api/v1/tickets/{ticketID}/comments
func (h *CommentHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreateComment)
	r.Get("/", h.HandleListComments)
	r.Patch("/{commentID}", h.HandleEditComment)
	return r
}

// AttachmentRouter sets up a chi Router for attachment routes.
// These routes are relative to /api/v1/tickets/{ticketID}/attachments
func (h *CommentHandler) AttachmentRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.HandleRegisterAttachment)
	r.Get("/{attachmentID}/download", h.HandleDownloadCheck)
	return r
}

// --- Request/Response DTOs ---

// CreateCommentRequest defines the expected JSON body for creating a comment
type CreateCommentRequest struct {
	Content         string  `json:"content" validate:"required"`
	IsInternal      bool    `json:"isInternal"`
	ParentCommentID *string `json:"parentCommentId" validate:"omitempty,uuid"`
}

// EditCommentRequest defines the expected JSON body for editing a comment
type EditCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// RegisterAttachmentRequest defines the expected JSON body for recording
// uploaded-file metadata
type RegisterAttachmentRequest struct {
	CommentID *string `json:"commentId" validate:"omitempty,uuid"`
	FileName  string  `json:"fileName" validate:"required,max=255"`
	MimeType  string  `json:"mimeType" validate:"required"`
	SizeBytes int64   `json:"sizeBytes" validate:"required,gte=1"`
}

// CommentDTO defines the JSON response for comments.
type CommentDTO struct {
	ID              string  `json:"id"`
	TicketID        string  `json:"ticketId"`
	AuthorID        string  `json:"authorId"`
	Content         string  `json:"content"`
	IsInternal      bool    `json:"isInternal"`
	IsEdited        bool    `json:"isEdited"`
	ParentCommentID *string `json:"parentCommentId"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       *string `json:"updatedAt"`
}

// AttachmentDTO defines the JSON response for attachments.
type AttachmentDTO struct {
	ID         string  `json:"id"`
	TicketID   string  `json:"ticketId"`
	CommentID  *string `json:"commentId"`
	UploadedBy string  `json:"uploadedBy"`
	FileName   string  `json:"fileName"`
	MimeType   string  `json:"mimeType"`
	SizeBytes  int64   `json:"sizeBytes"`
	ScanStatus string  `json:"scanStatus"`
	CreatedAt  string  `json:"createdAt"`
}

// DownloadCheckResponse reports the download verdict for an attachment.
type DownloadCheckResponse struct {
	Allowed    bool          `json:"allowed"`
	Attachment AttachmentDTO `json:"attachment"`
}

func toCommentDTO(comment *domain.Comment) CommentDTO {
	var parentID *string
	if comment.ParentCommentID != nil {
		value := comment.ParentCommentID.String()
		parentID = &value
	}

	return CommentDTO{
		ID:              comment.ID.String(),
		TicketID:        comment.TicketID.String(),
		AuthorID:        comment.AuthorID.String(),
		Content:         comment.Content,
		IsInternal:      comment.IsInternal,
		IsEdited:        comment.IsEdited,
		ParentCommentID: parentID,
		CreatedAt:       comment.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       formatTimePtr(comment.UpdatedAt),
	}
}

func toCommentDTOs(comments []*domain.Comment) []CommentDTO {
	response := make([]CommentDTO, 0, len(comments))
	for _, comment := range comments {
		response = append(response, toCommentDTO(comment))
	}
	return response
}

func toAttachmentDTO(attachment *domain.Attachment) AttachmentDTO {
	var commentID *string
	if attachment.CommentID != nil {
		value := attachment.CommentID.String()
		commentID = &value
	}

	return AttachmentDTO{
		ID:         attachment.ID.String(),
		TicketID:   attachment.TicketID.String(),
		CommentID:  commentID,
		UploadedBy: attachment.UploadedBy.String(),
		FileName:   attachment.FileName,
		MimeType:   attachment.MimeType,
		SizeBytes:  attachment.SizeBytes,
		ScanStatus: string(attachment.ScanStatus),
		CreatedAt:  attachment.CreatedAt.Format(time.RFC3339),
	}
}

// --- Handlers ---

// HandleCreateComment handles POST /tickets/{ticketID}/comments
func (h *CommentHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[CreateCommentRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var parentID *uuid.UUID
	if req.ParentCommentID != nil {
		parsed, err := uuid.Parse(*req.ParentCommentID)
		if err == nil {
			parentID = &parsed
		}
	}

	comment, err := h.commentService.CreateComment(r.Context(), ports.CreateCommentParams{
		TicketID:        ticketID,
		Actor:           actor,
		Content:         req.Content,
		IsInternal:      req.IsInternal,
		ParentCommentID: parentID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("comment created",
		"comment_id", comment.ID,
		"ticket_id", ticketID,
		"user_id", actor.ID,
	)

	WriteCreated(w, toCommentDTO(comment))
}

// HandleListComments handles GET /tickets/{ticketID}/comments
func (h *CommentHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	comments, err := h.commentService.ListComments(r.Context(), ticketID, actor)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toCommentDTOs(comments))
}

// HandleEditComment handles PATCH /tickets/{ticketID}/comments/{commentID}
func (h *CommentHandler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	commentID, err := uuid.Parse(chi.URLParam(r, "commentID"))
	if err != nil {
		v := validation.NewValidator()
		v.Custom("commentID", false, "Invalid comment ID")
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	req, err := validation.DecodeAndValidate[EditCommentRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	comment, err := h.commentService.EditComment(r.Context(), ports.EditCommentParams{
		CommentID: commentID,
		Actor:     actor,
		Content:   req.Content,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("comment edited",
		"comment_id", commentID,
		"user_id", actor.ID,
	)

	WriteJSON(w, http.StatusOK, toCommentDTO(comment))
}

// HandleRegisterAttachment handles POST /tickets/{ticketID}/attachments
func (h *CommentHandler) HandleRegisterAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[RegisterAttachmentRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var commentID *uuid.UUID
	if req.CommentID != nil {
		parsed, err := uuid.Parse(*req.CommentID)
		if err == nil {
			commentID = &parsed
		}
	}

	attachment, err := h.commentService.RegisterAttachment(r.Context(), ports.RegisterAttachmentParams{
		TicketID:  ticketID,
		CommentID: commentID,
		Actor:     actor,
		FileName:  req.FileName,
		MimeType:  req.MimeType,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("attachment registered",
		"attachment_id", attachment.ID,
		"ticket_id", ticketID,
		"user_id", actor.ID,
	)

	WriteCreated(w, toAttachmentDTO(attachment))
}

// HandleDownloadCheck handles GET /tickets/{ticketID}/attachments/{attachmentID}/download
func (h *CommentHandler) HandleDownloadCheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentID"))
	if err != nil {
		v := validation.NewValidator()
		v.Custom("attachmentID", false, "Invalid attachment ID")
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	decision, attachment, err := h.commentService.CheckDownload(r.Context(), attachmentID, actor)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	switch decision {
	case domain.DownloadAllowed:
		WriteJSON(w, http.StatusOK, DownloadCheckResponse{
			Allowed:    true,
			Attachment: toAttachmentDTO(attachment),
		})
	case domain.DownloadNotReady:
		// A pending scan is "not yet available", which is distinct from a
		// denial; the metadata stays visible so the client can poll.
		WriteJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Attachment is awaiting virus scan",
			Code:  "SCAN_PENDING",
		})
	default:
		WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error: "You may not download this attachment",
			Code:  "FORBIDDEN",
		})
	}
}
