package handlers

import (
	"net/http"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/tasks"
)

// Booking handles pickup requests
type Booking struct {
	Intake  *tasks.Intake
	Machine *tasks.Machine
}

type bookingRequest struct {
	LocationAddress string                 `json:"locationAddress"`
	LocationLat     *float64               `json:"locationLat"`
	LocationLng     *float64               `json:"locationLng"`
	Notes           string                 `json:"notes"`
	ServiceType     string                 `json:"serviceType"`
	ServiceDetails  *models.ServiceDetails `json:"serviceDetails"`
	// older clients send the size at the top level
	Bags       int     `json:"bags"`
	TankVolume float64 `json:"tankVolume"`
}

func (b bookingRequest) toIntake() tasks.BookingRequest {
	req := tasks.BookingRequest{
		Address:     b.LocationAddress,
		Lat:         b.LocationLat,
		Lng:         b.LocationLng,
		ServiceType: b.ServiceType,
		Bags:        b.Bags,
		TankVolume:  b.TankVolume,
		Notes:       b.Notes,
	}
	if b.ServiceDetails != nil {
		if b.ServiceDetails.Bags != 0 {
			req.Bags = b.ServiceDetails.Bags
		}
		if b.ServiceDetails.TankVolume != 0 {
			req.TankVolume = b.ServiceDetails.TankVolume
		}
	}
	return req
}

// CreateBookingHandler creates a pending booking for the calling resident
func (b Booking) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req bookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	view, err := b.Intake.CreateBooking(ctx, *caller, req.toIntake())
	if err != nil {
		writeError(w, "failed to create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ResidentBookingsHandler lists the caller's own bookings
func (b Booking) ResidentBookingsHandler(w http.ResponseWriter, r *http.Request) {
	listOwn(w, r, b.Machine, models.KindBooking)
}

// CollectorBookingsHandler lists the bookings assigned to the calling collector
func (b Booking) CollectorBookingsHandler(w http.ResponseWriter, r *http.Request) {
	listAssigned(w, r, b.Machine, models.KindBooking)
}

// UpdateBookingStatusHandler moves a booking to the requested status
func (b Booking) UpdateBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	updateStatus(w, r, b.Machine, models.KindBooking)
}

// AllBookingsHandler lists every booking, optionally narrowed by ?serviceType=
func (b Booking) AllBookingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	views, err := b.Machine.List(ctx, models.KindBooking, models.TaskQuery{ServiceType: r.URL.Query().Get("serviceType")})
	if err != nil {
		writeError(w, "failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
