package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/config"
	"github.com/smartwaste/smartwaste-api/models"
)

// MessageResponse is the body of responses that only carry a message
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// writeError responds with the status matching err's kind
func writeError(w http.ResponseWriter, message string, err error) {
	config.ErrorStatus(message, apperrors.HTTPStatus(err), w, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return false
	}
	return true
}

func pathObjectID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		config.ErrorStatus("invalid "+name, http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUser returns the caller loaded by the auth middleware
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, ok := api.CurrentUser(r.Context())
	if !ok {
		config.ErrorStatus("authentication required", http.StatusUnauthorized, w, errors.New("no user in request context"))
	}
	return u, ok
}

// queryInt reads an integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func errValidation(msg string) error {
	return fmt.Errorf("%s: %w", msg, apperrors.ErrValidation)
}

func errUnauthorized(msg string) error {
	return fmt.Errorf("%s: %w", msg, apperrors.ErrUnauthorized)
}
