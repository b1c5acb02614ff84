package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	nonstd "github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/usermgmt/apiserver/internal/logging"
	"github.com/usermgmt/apiserver/internal/services"
	"github.com/usermgmt/apiserver/types"
)

const (
	defaultSkip  = 0
	defaultLimit = 100
	maxLimit     = 1000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// UserHandler provides HTTP handlers for user CRUD.
type UserHandler struct {
	userService *services.UserService
	validate    *validator.Validate
	log         logging.Logger
	debug       bool
}

// NewUserHandler constructs a handler with the provided dependencies.
func NewUserHandler(userService *services.UserService, log logging.Logger, debug bool) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    newValidator(),
		log:         log,
		debug:       debug,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", nonstd.NotBlank)
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, log logging.Logger, debug bool) {
	handler := NewUserHandler(userService, log, debug)

	r.Post("/", handler.CreateUser)
	r.Get("/", handler.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

// CreateUserRequest is the wire schema for creating a user.
type CreateUserRequest struct {
	Username  string      `json:"username" validate:"required,min=3,max=50,username"`
	Email     string      `json:"email" validate:"required,email"`
	FirstName string      `json:"first_name" validate:"required,min=1,max=50,notblank"`
	LastName  string      `json:"last_name" validate:"required,min=1,max=50,notblank"`
	Role      *types.Role `json:"role" validate:"omitnil,oneof=admin user guest"`
	Active    *bool       `json:"active"`
}

// UpdateUserRequest is the wire schema for a partial update. Nil fields
// were omitted from the request and leave the stored value untouched.
type UpdateUserRequest struct {
	Username  *string     `json:"username" validate:"omitnil,min=3,max=50,username"`
	Email     *string     `json:"email" validate:"omitnil,email"`
	FirstName *string     `json:"first_name" validate:"omitnil,min=1,max=50,notblank"`
	LastName  *string     `json:"last_name" validate:"omitnil,min=1,max=50,notblank"`
	Role      *types.Role `json:"role" validate:"omitnil,oneof=admin user guest"`
	Active    *bool       `json:"active"`
}

// UserListResponse is the paginated list response payload.
type UserListResponse struct {
	Total int          `json:"total"`
	Users []types.User `json:"users"`
	Skip  int          `json:"skip"`
	Limit int          `json:"limit"`
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	user := types.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      types.RoleUser,
		Active:    true,
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	created, err := h.userService.Create(r.Context(), user)
	if err != nil {
		h.writeServiceError(w, r, err, "creating")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, filter, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), filter, skip, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "listing")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Total: total,
		Users: users,
		Skip:  skip,
		Limit: limit,
	})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "fetching")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	changes := types.UserUpdate{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: trimmed(req.FirstName),
		LastName:  trimmed(req.LastName),
		Role:      req.Role,
		Active:    req.Active,
	}

	updated, err := h.userService.Update(r.Context(), id, changes)
	if err != nil {
		h.writeServiceError(w, r, err, "updating")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "deleting")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps the expected error kinds to transport status
// codes; anything unrecognized is logged and reported as a 500 with a
// generic message unless debug mode is on.
func (h *UserHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var notFound *services.NotFoundError
	var exists *services.AlreadyExistsError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &exists):
		writeError(w, http.StatusConflict, exists.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "user "+op+" failed due to data constraint violation")
	default:
		h.log.Error(r.Context(), "unexpected error while "+op+" user",
			"method", r.Method, "path", r.URL.Path, "error", err)
		msg := "internal server error"
		if h.debug {
			msg = err.Error()
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

func parseListQuery(r *http.Request) (skip, limit int, filter types.UserFilter, err error) {
	skip = defaultSkip
	limit = defaultLimit
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("skip")); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, types.UserFilter{}, errors.New("skip must be a non-negative integer")
		}
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, types.UserFilter{}, errors.New("limit must be an integer between 1 and 1000")
		}
	}
	if raw := strings.TrimSpace(query.Get("active")); raw != "" {
		active, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return 0, 0, types.UserFilter{}, errors.New("active must be a boolean")
		}
		filter.Active = &active
	}
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		filter.Role = types.Role(raw)
	}

	return skip, limit, filter, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	t := strings.TrimSpace(*value)
	return &t
}

// validationMessage flattens validator output into a single
// human-readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "validation error"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed on '"+fe.Tag()+"'")
	}
	return "validation error: " + strings.Join(parts, "; ")
}
