package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/tasks"
)

// Task serves the unified admin listing of bookings and reports
type Task struct {
	Machine *tasks.Machine
}

type statusRequest struct {
	Status      string              `json:"status"`
	CollectorID *primitive.ObjectID `json:"collectorId"`
}

// TasksHandler lists tasks of the kind given by ?kind=, or of every kind
func (t Task) TasksHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	views, err := t.Machine.List(ctx, models.TaskKind(r.URL.Query().Get("kind")), models.TaskQuery{})
	if err != nil {
		writeError(w, "failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// updateStatus is shared by the booking and report status routes
func updateStatus(w http.ResponseWriter, r *http.Request, machine *tasks.Machine, kind models.TaskKind) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// an empty collectorId decodes to the nil id and means no explicit assignee
	if req.CollectorID != nil && req.CollectorID.IsZero() {
		req.CollectorID = nil
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	view, err := machine.SetStatus(ctx, tasks.StatusChange{
		Kind:     kind,
		TaskID:   id,
		Status:   req.Status,
		Actor:    *caller,
		Assignee: req.CollectorID,
	})
	if err != nil {
		writeError(w, "failed to update "+string(kind)+" status", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// listOwn returns the tasks of the kind requested by the caller
func listOwn(w http.ResponseWriter, r *http.Request, machine *tasks.Machine, kind models.TaskKind) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	views, err := machine.List(ctx, kind, models.TaskQuery{UserID: &caller.ID})
	if err != nil {
		writeError(w, "failed to list "+string(kind)+"s", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// listAssigned returns the tasks of the kind held by the calling collector
func listAssigned(w http.ResponseWriter, r *http.Request, machine *tasks.Machine, kind models.TaskKind) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	views, err := machine.ListForCollector(ctx, kind, *caller)
	if err != nil {
		writeError(w, "failed to list "+string(kind)+"s", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
