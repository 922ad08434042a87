package todos

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskgate/taskgate/internal/identity"
	"github.com/taskgate/taskgate/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the todo service. Every route resolves
// the caller through the identity resolver middleware before reaching a
// handler, so IdentityFromContext never returns nil here.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers the protected todo routes behind the resolver.
func (h *Handler) MountRoutes(r chi.Router, resolver *identity.Resolver) {
	r.Group(func(r chi.Router) {
		r.Use(resolver.Middleware)
		r.Get("/api/auth/me", h.handleMe)
		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Post("/", h.handleCreate)
			r.Get("/stats", h.handleStats)
			r.Get("/{id}", h.handleGet)
			r.Put("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDelete)
		})
	})
}

type createTodoRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type updateTodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Completed   *bool   `json:"completed"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type todoResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    string    `json:"priority"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTodoResponse(todo *Todo) todoResponse {
	return todoResponse{
		ID:          todo.ID,
		Title:       todo.Title,
		Description: todo.Description,
		Completed:   todo.Completed,
		Priority:    todo.Priority,
		UserID:      todo.UserID,
		CreatedAt:   todo.CreatedAt,
		UpdatedAt:   todo.UpdatedAt,
	}
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id": caller.UserID,
		"email":   caller.Email,
		"name":    caller.DisplayName,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())

	filter := ListFilter{
		Priority: r.URL.Query().Get("priority"),
		Limit:    queryInt(r, "limit", 100),
		Offset:   queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "completed must be a boolean")
			return
		}
		filter.Completed = &completed
	}

	items, err := h.service.List(r.Context(), caller.UserID, filter)
	if err != nil {
		h.respondError(w, r, "list todos", err)
		return
	}
	responses := make([]todoResponse, len(items))
	for i := range items {
		responses[i] = newTodoResponse(&items[i])
	}
	httpx.JSON(w, http.StatusOK, responses)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())

	var req createTodoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	todo, err := h.service.Create(r.Context(), caller.UserID, req.Title, req.Description, req.Priority)
	if err != nil {
		h.respondError(w, r, "create todo", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTodoResponse(todo))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid todo id")
		return
	}
	todo, err := h.service.Get(r.Context(), id, caller.UserID)
	if err != nil {
		h.respondError(w, r, "get todo", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTodoResponse(todo))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid todo id")
		return
	}

	var req updateTodoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	todo, err := h.service.Update(r.Context(), id, caller.UserID, Update{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Priority:    req.Priority,
	})
	if err != nil {
		h.respondError(w, r, "update todo", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTodoResponse(todo))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid todo id")
		return
	}
	if err := h.service.Delete(r.Context(), id, caller.UserID); err != nil {
		h.respondError(w, r, "delete todo", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "todo deleted successfully"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	caller := identity.IdentityFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), caller.UserID)
	if err != nil {
		h.respondError(w, r, "todo stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total":     stats.Total,
		"completed": stats.Completed,
		"pending":   stats.Pending,
		"by_priority": map[string]int64{
			"high":   stats.High,
			"medium": stats.Medium,
			"low":    stats.Low,
		},
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "todo not found")
	case errors.Is(err, ErrNoFields):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no fields to update")
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
