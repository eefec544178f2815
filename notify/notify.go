// Package notify delivers proximity events and one-time codes over the
// configured channels. Delivery is best effort: a failure is reported to the
// caller as apperrors.ErrUnavailable and never retried here.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProximityEvent says a collector came within the match radius of a requester's home
type ProximityEvent struct {
	CollectorID    primitive.ObjectID `json:"collectorId"`
	VehicleNumber  string             `json:"vehicleNumber,omitempty"`
	RequesterID    primitive.ObjectID `json:"requesterId"`
	RequesterName  string             `json:"requesterName,omitempty"`
	RequesterEmail string             `json:"-"`
	DistanceMeters float64            `json:"distanceMeters"`
	Latitude       float64            `json:"latitude"`
	Longitude      float64            `json:"longitude"`
	At             time.Time          `json:"at"`
}

// Recipient is the addressee of a one-time code
type Recipient struct {
	Name  string
	Email string
}

// Dispatcher delivers proximity events
type Dispatcher interface {
	Dispatch(ctx context.Context, ev ProximityEvent) error
}

// CodeSender delivers one-time verification codes
type CodeSender interface {
	SendCode(ctx context.Context, to Recipient, code string) error
}

// LogDispatcher only logs events. It is used when no channel is configured.
type LogDispatcher struct{}

// Dispatch implements Dispatcher
func (LogDispatcher) Dispatch(_ context.Context, ev ProximityEvent) error {
	zap.S().Infow("collector nearby",
		"collectorId", ev.CollectorID.Hex(),
		"requesterId", ev.RequesterID.Hex(),
		"distanceMeters", ev.DistanceMeters,
	)
	return nil
}

// LogCodeSender logs one-time codes instead of sending them. Local use only.
type LogCodeSender struct{}

// SendCode implements CodeSender
func (LogCodeSender) SendCode(_ context.Context, to Recipient, code string) error {
	zap.S().Debugw("verification code issued", "email", to.Email, "code", code)
	return nil
}

// ErrPartialDelivery marks a dispatch that reached at least one channel
// while others failed
var ErrPartialDelivery = errors.New("delivered on some channels only")

// Multi fans an event out to every dispatcher. All of them are tried; the
// failures are joined, and wrap ErrPartialDelivery when any channel succeeded.
type Multi []Dispatcher

// Dispatch implements Dispatcher
func (m Multi) Dispatch(ctx context.Context, ev ProximityEvent) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	failed := len(errs)
	if failed == 0 {
		return nil
	}
	if failed < len(m) {
		errs = append([]error{ErrPartialDelivery}, errs...)
	}
	return fmt.Errorf("dispatch failed on %d of %d channels: %w", failed, len(m), errors.Join(errs...))
}
