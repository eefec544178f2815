package handlers

import (
	"net/http"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/identity"
	"github.com/smartwaste/smartwaste-api/models"
)

// Admin handles the administrator routes
type Admin struct {
	Admin   *identity.Admin
	Metrics *api.Metrics
}

type createCollectorRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"fullName"`
	Phone         string `json:"phone"`
	VehicleNumber string `json:"vehicleNumber"`
	VehicleType   string `json:"vehicleType"`
}

// CreateCollectorResponse is the created identity with its profile
type CreateCollectorResponse struct {
	Message   string                   `json:"message"`
	User      *models.User             `json:"user"`
	Collector *models.CollectorProfile `json:"collector"`
}

// CreateCollectorHandler creates a collector account and profile
func (h Admin) CreateCollectorHandler(w http.ResponseWriter, r *http.Request) {
	var req createCollectorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, profile, err := h.Admin.CreateCollector(ctx, identity.NewCollector{
		Username:      req.Username,
		Password:      req.Password,
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		VehicleNumber: req.VehicleNumber,
		VehicleType:   req.VehicleType,
	})
	if err != nil {
		writeError(w, "failed to create collector", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateCollectorResponse{
		Message:   "Collector created",
		User:      user,
		Collector: profile,
	})
}

// UsersHandler lists identities, narrowed by ?role= and paged by ?limit= and ?page=
func (h Admin) UsersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := h.Admin.ListUsers(ctx, r.URL.Query().Get("role"), queryInt(r, "limit", 0), queryInt(r, "page", 0))
	if err != nil {
		writeError(w, "failed to list users", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteUserHandler removes an identity and everything that depends on it.
// It also serves the collector deletion route.
func (h Admin) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "userId")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := h.Admin.DeleteIdentity(ctx, id); err != nil {
		writeError(w, "failed to delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteUserResponse{
		Message:       "User and related data deleted successfully",
		DeletedUserID: id.Hex(),
	})
}

// DeleteUserResponse confirms an identity deletion
type DeleteUserResponse struct {
	Message       string `json:"message"`
	DeletedUserID string `json:"deletedUserId"`
}

// MetricsHandler returns the request timing summary, ?limit= slowest routes
func (h Admin) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Metrics.Summary(queryInt(r, "limit", 10)))
}
