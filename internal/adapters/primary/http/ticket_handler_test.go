package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/mocks"
	"github.com/lorrc/helpdesk-backend/internal/core/services"
)

// ticketRouterFixture wires the ticket routes over mocked repositories with
// real core services, so requests exercise decoding, authorization, and error
// mapping end to end.
type ticketRouterFixture struct {
	router       *chi.Mux
	tokenManager *auth.TokenManager
	ticketRepo   *mocks.MockTicketRepository
	userRepo     *mocks.MockUserRepository
	commentRepo  *mocks.MockCommentRepository
	txManager    *mocks.MockTransactionManager
	allocator    *mocks.MockNumberAllocator
}

func newTicketRouterFixture() *ticketRouterFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ticketRepo := mocks.NewMockTicketRepository()
	userRepo := mocks.NewMockUserRepository()
	commentRepo := mocks.NewMockCommentRepository()
	attachmentRepo := mocks.NewMockAttachmentRepository()
	txManager := mocks.NewMockTransactionManager()
	allocator := mocks.NewMockNumberAllocator()
	notifier := mocks.NewMockNotifier()

	authzService := services.NewAuthorizationService()
	auditRecorder := services.NewAuditRecorder(commentRepo, logger)
	assignmentService := services.NewAssignmentService(ticketRepo, userRepo, authzService, auditRecorder, logger)
	ticketService := services.NewTicketService(
		ticketRepo,
		authzService,
		assignmentService,
		allocator,
		auditRecorder,
		notifier,
		txManager,
		logger,
	)
	commentService := services.NewCommentService(commentRepo, attachmentRepo, ticketRepo, authzService, logger)

	errorHandler := NewErrorHandler(logger)
	commentHandler := NewCommentHandler(commentService, errorHandler, logger)
	ticketHandler := NewTicketHandler(ticketService, assignmentService, commentHandler, errorHandler, logger)

	tokenManager := auth.NewTokenManager("test-secret", time.Hour)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(mw.Authenticator(tokenManager, userRepo))
		r.Route("/tickets", ticketHandler.RegisterRoutes)
	})

	return &ticketRouterFixture{
		router:       router,
		tokenManager: tokenManager,
		ticketRepo:   ticketRepo,
		userRepo:     userRepo,
		commentRepo:  commentRepo,
		txManager:    txManager,
		allocator:    allocator,
	}
}

// loginAs stubs the user lookup the auth middleware performs and returns a
// bearer token for the user.
func (f *ticketRouterFixture) loginAs(t *testing.T, user *domain.User) string {
	t.Helper()
	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	token, err := f.tokenManager.GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	return token
}

func (f *ticketRouterFixture) do(req *stdhttp.Request, token string) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func memberUser() *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		FullName:  "Morgan Vale",
		Email:     "morgan@example.com",
		Role:      domain.RoleMember,
		Status:    domain.UserActive,
		CreatedAt: time.Now().UTC(),
	}
}

func staffUser() *domain.User {
	user := memberUser()
	user.FullName = "Dana Reyes"
	user.Email = "dana@example.com"
	user.Role = domain.RoleStaff
	return user
}

func storedTicket(createdBy uuid.UUID) *domain.Ticket {
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:       "Portal login fails",
		Description: "Every login attempt ends in a blank page after MFA.",
		Category:    domain.CategoryAccountAccess,
		CreatedBy:   createdBy,
	})
	if err != nil {
		panic(err)
	}
	ticket.TicketNumber = "HD-202608-0042"
	return ticket
}

func TestTicketRoutes_RequireAuth(t *testing.T) {
	f := newTicketRouterFixture()

	req := httptest.NewRequest(stdhttp.MethodGet, "/tickets", nil)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	assert.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)
}

func TestTicketRoutes_SuspendedAccountRejected(t *testing.T) {
	f := newTicketRouterFixture()

	user := memberUser()
	user.Status = domain.UserSuspended
	token := f.loginAs(t, user)

	req := httptest.NewRequest(stdhttp.MethodGet, "/tickets", nil)
	recorder := f.do(req, token)

	assert.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)
}

func TestCreateTicket_ValidationFields(t *testing.T) {
	f := newTicketRouterFixture()
	token := f.loginAs(t, memberUser())

	payload := []byte(`{"title":"short","description":"too short","category":"account-access"}`)
	req := httptest.NewRequest(stdhttp.MethodPost, "/tickets", bytes.NewReader(payload))
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)

	var response ValidationErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "VALIDATION_ERROR", response.Code)
	assert.Contains(t, response.Fields, "title")
	assert.Contains(t, response.Fields, "description")
}

func TestCreateTicket_Success(t *testing.T) {
	f := newTicketRouterFixture()
	user := memberUser()
	token := f.loginAs(t, user)

	f.txManager.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.allocator.On("Allocate", mock.Anything, mock.Anything).Return("HD-202608-0007", nil)
	f.ticketRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.commentRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	payload := []byte(`{
		"title": "Cannot reach the billing portal",
		"description": "The billing portal times out for everyone on our team.",
		"category": "general-support",
		"urgency": "LOW",
		"tags": ["billing"]
	}`)
	req := httptest.NewRequest(stdhttp.MethodPost, "/tickets", bytes.NewReader(payload))
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusCreated, recorder.Code)

	var response TicketDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "OPEN", response.Status)
	assert.Equal(t, "LOW", response.Urgency)
	assert.Equal(t, user.ID.String(), response.CreatedBy)
	assert.NotEmpty(t, response.TicketNumber)
}

func TestGetTicket_StrangerForbidden(t *testing.T) {
	f := newTicketRouterFixture()
	token := f.loginAs(t, memberUser())

	ticket := storedTicket(uuid.New()) // someone else's ticket
	f.ticketRepo.On("GetByID", mock.Anything, ticket.ID).Return(ticket, nil)

	req := httptest.NewRequest(stdhttp.MethodGet, "/tickets/"+ticket.ID.String(), nil)
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusForbidden, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "FORBIDDEN", response.Code)
}

func TestGetTicket_OwnerSeesOwn(t *testing.T) {
	f := newTicketRouterFixture()
	user := memberUser()
	token := f.loginAs(t, user)

	ticket := storedTicket(user.ID)
	f.ticketRepo.On("GetByID", mock.Anything, ticket.ID).Return(ticket, nil)

	req := httptest.NewRequest(stdhttp.MethodGet, "/tickets/"+ticket.ID.String(), nil)
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var response TicketDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, ticket.TicketNumber, response.TicketNumber)
	assert.Equal(t, "account-access", response.Category)
}

func TestUpdateStatus_InvalidTransitionConflict(t *testing.T) {
	f := newTicketRouterFixture()
	staff := staffUser()
	token := f.loginAs(t, staff)

	ticket := storedTicket(uuid.New())
	now := time.Now().UTC()
	require.NoError(t, ticket.ApplyTransition(domain.StatusClosed, domain.TransitionOptions{}, now))
	f.ticketRepo.On("GetByID", mock.Anything, ticket.ID).Return(ticket, nil)

	payload := []byte(`{"status":"OPEN"}`)
	req := httptest.NewRequest(stdhttp.MethodPatch, "/tickets/"+ticket.ID.String()+"/status", bytes.NewReader(payload))
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusConflict, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "INVALID_STATUS_TRANSITION", response.Code)
	assert.Equal(t, "CLOSED", response.Details["from"])
	assert.Equal(t, "OPEN", response.Details["to"])
}

func TestUpdateStatus_UnknownValueRejected(t *testing.T) {
	f := newTicketRouterFixture()
	token := f.loginAs(t, staffUser())

	payload := []byte(`{"status":"ARCHIVED"}`)
	req := httptest.NewRequest(stdhttp.MethodPatch, "/tickets/"+uuid.NewString()+"/status", bytes.NewReader(payload))
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)

	var response ValidationErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Contains(t, response.Fields, "status")
}

func TestAssignTicket_MemberForbidden(t *testing.T) {
	f := newTicketRouterFixture()
	token := f.loginAs(t, memberUser())

	payload := []byte(`{"assigneeId":"` + uuid.NewString() + `"}`)
	req := httptest.NewRequest(stdhttp.MethodPatch, "/tickets/"+uuid.NewString()+"/assignee", bytes.NewReader(payload))
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusForbidden, recorder.Code)
}

func TestAssignTicket_Success(t *testing.T) {
	f := newTicketRouterFixture()
	staff := staffUser()
	token := f.loginAs(t, staff)

	assignee := staffUser()
	assignee.ID = uuid.New()
	assignee.Email = "kim@example.com"
	assignee.FullName = "Kim Okafor"

	ticket := storedTicket(uuid.New())
	f.ticketRepo.On("GetByID", mock.Anything, ticket.ID).Return(ticket, nil)
	f.userRepo.On("GetByID", mock.Anything, assignee.ID).Return(assignee, nil)
	f.ticketRepo.On("Update", mock.Anything, mock.Anything).Return(ticket, nil)
	f.commentRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	payload := []byte(`{"assigneeId":"` + assignee.ID.String() + `","reason":"taking over"}`)
	req := httptest.NewRequest(stdhttp.MethodPatch, "/tickets/"+ticket.ID.String()+"/assignee", bytes.NewReader(payload))
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var response TicketDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "IN_PROGRESS", response.Status)
	require.NotNil(t, response.AssignedTo)
	assert.Equal(t, assignee.ID.String(), *response.AssignedTo)
}

func TestGetTicket_NotFound(t *testing.T) {
	f := newTicketRouterFixture()
	token := f.loginAs(t, staffUser())

	missing := uuid.New()
	f.ticketRepo.On("GetByID", mock.Anything, missing).Return(nil, apperrors.ErrTicketNotFound)

	req := httptest.NewRequest(stdhttp.MethodGet, "/tickets/"+missing.String(), nil)
	recorder := f.do(req, token)

	require.Equal(t, stdhttp.StatusNotFound, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "TICKET_NOT_FOUND", response.Code)
}
