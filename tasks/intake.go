package tasks

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// HomeLocationSetter records where a requester lives
type HomeLocationSetter interface {
	SetHomeLocation(ctx context.Context, id primitive.ObjectID, address string, lat, lng float64) error
}

// BookingRequest is a requester's pickup request
type BookingRequest struct {
	Address     string
	Lat         *float64
	Lng         *float64
	ServiceType string
	Bags        int
	TankVolume  float64
	Notes       string
}

// ReportRequest is a requester's hazard report
type ReportRequest struct {
	Address     string
	Lat         *float64
	Lng         *float64
	Description string
	PhotoURL    string
}

// Intake accepts new bookings and reports
type Intake struct {
	bookings TaskStore
	reports  TaskStore
	homes    HomeLocationSetter
	machine  *Machine
}

// NewIntake returns an Intake writing to the given stores. Views of created
// tasks are resolved through machine.
func NewIntake(bookings, reports TaskStore, homes HomeLocationSetter, machine *Machine) *Intake {
	return &Intake{
		bookings: bookings,
		reports:  reports,
		homes:    homes,
		machine:  machine,
	}
}

func validPoint(address string, lat, lng *float64) error {
	if strings.TrimSpace(address) == "" || lat == nil || lng == nil {
		return fmt.Errorf("location address, latitude and longitude are required: %w", apperrors.ErrValidation)
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || math.IsNaN(*lng) || math.IsInf(*lng, 0) {
		return fmt.Errorf("invalid coordinates: %w", apperrors.ErrValidation)
	}
	return nil
}

// CreateBooking stores a pending, unassigned booking for the requester and
// remembers its location as the requester's home
func (in *Intake) CreateBooking(ctx context.Context, requester models.User, req BookingRequest) (*models.TaskView, error) {
	if err := validPoint(req.Address, req.Lat, req.Lng); err != nil {
		return nil, err
	}

	details := &models.ServiceDetails{}
	switch req.ServiceType {
	case "", models.ServiceGarbage:
		req.ServiceType = models.ServiceGarbage
		if req.Bags <= 0 {
			return nil, fmt.Errorf("number of bags must be greater than 0: %w", apperrors.ErrValidation)
		}
		details.Bags = req.Bags
	case models.ServiceSewage:
		if req.TankVolume <= 0 {
			return nil, fmt.Errorf("tank volume must be greater than 0: %w", apperrors.ErrValidation)
		}
		details.TankVolume = req.TankVolume
	default:
		return nil, fmt.Errorf("unknown service type %q: %w", req.ServiceType, apperrors.ErrValidation)
	}

	now := in.machine.now()
	task := &models.Task{
		Kind:            models.KindBooking,
		UserID:          requester.ID,
		LocationAddress: req.Address,
		LocationLat:     *req.Lat,
		LocationLng:     *req.Lng,
		Status:          models.StatusPending,
		ServiceType:     req.ServiceType,
		ServiceDetails:  details,
		Notes:           req.Notes,
		RequestedAt:     &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return in.create(ctx, in.bookings, requester, task)
}

// CreateReport stores a pending, unassigned report for the requester
func (in *Intake) CreateReport(ctx context.Context, requester models.User, req ReportRequest) (*models.TaskView, error) {
	if err := validPoint(req.Address, req.Lat, req.Lng); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description is required: %w", apperrors.ErrValidation)
	}

	now := in.machine.now()
	task := &models.Task{
		Kind:            models.KindReport,
		UserID:          requester.ID,
		LocationAddress: req.Address,
		LocationLat:     *req.Lat,
		LocationLng:     *req.Lng,
		Status:          models.StatusPending,
		Description:     req.Description,
		PhotoURL:        req.PhotoURL,
		ReportedAt:      &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return in.create(ctx, in.reports, requester, task)
}

func (in *Intake) create(ctx context.Context, store TaskStore, requester models.User, task *models.Task) (*models.TaskView, error) {
	id, err := store.InsertOne(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", task.Kind, err)
	}
	task.ID = id

	if in.homes != nil {
		err := in.homes.SetHomeLocation(ctx, requester.ID, task.LocationAddress, task.LocationLat, task.LocationLng)
		if err != nil {
			zap.S().Warnw("failed to update home location",
				"userId", requester.ID.Hex(),
				"error", err,
			)
		}
	}

	zap.S().Infow("task created", "kind", task.Kind, "taskId", id.Hex(), "userId", requester.ID.Hex())
	views, err := in.machine.views(ctx, []models.Task{*task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
