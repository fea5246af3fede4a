package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// CreateUser registers a user of any role; admin only.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	u := &user.User{
		ID:        req.ID,
		Role:      role,
		Name:      req.Name,
		FirstName: req.FirstName,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
		Client:    req.Client,
		Supplier:  req.Supplier,
		Admin:     req.Admin,
	}
	// A bare role gets an empty profile of its kind.
	switch {
	case u.IsClient() && u.Client == nil:
		u.Client = &user.ClientProfile{}
	case u.IsAdmin() && u.Admin == nil:
		u.Admin = &user.AdminProfile{}
	}
	if err := h.svc.Users.SaveUser(r.Context(), u); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !caller(r).IsAdmin() && caller(r).ID != id {
		writeAppError(w, r, apperr.Newf(apperr.NotFound, "user %s not found", id))
		return
	}
	u, err := h.svc.Users.GetUser(r.Context(), id)
	respond(w, r, http.StatusOK, u, err)
}
