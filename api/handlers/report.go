package handlers

import (
	"net/http"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/tasks"
)

// Report handles hazard reports
type Report struct {
	Intake  *tasks.Intake
	Machine *tasks.Machine
}

type reportRequest struct {
	LocationAddress string   `json:"locationAddress"`
	LocationLat     *float64 `json:"locationLat"`
	LocationLng     *float64 `json:"locationLng"`
	Description     string   `json:"description"`
	PhotoURL        string   `json:"photoUrl"`
}

// CreateReportHandler files a pending report for the caller
func (re Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	view, err := re.Intake.CreateReport(ctx, *caller, tasks.ReportRequest{
		Address:     req.LocationAddress,
		Lat:         req.LocationLat,
		Lng:         req.LocationLng,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeError(w, "failed to create report", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// UserReportsHandler lists the caller's own reports
func (re Report) UserReportsHandler(w http.ResponseWriter, r *http.Request) {
	listOwn(w, r, re.Machine, models.KindReport)
}

// CollectorReportsHandler lists the reports assigned to the calling collector
func (re Report) CollectorReportsHandler(w http.ResponseWriter, r *http.Request) {
	listAssigned(w, r, re.Machine, models.KindReport)
}

// UpdateReportStatusHandler moves a report to the requested status
func (re Report) UpdateReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	updateStatus(w, r, re.Machine, models.KindReport)
}

// AllReportsHandler lists every report
func (re Report) AllReportsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	views, err := re.Machine.List(ctx, models.KindReport, models.TaskQuery{})
	if err != nil {
		writeError(w, "failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
