package location

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/notify"
)

// DefaultMatchRadius is the proximity threshold in meters
const DefaultMatchRadius = 500.0

// CandidateSource lists requesters eligible for proximity notifications
type CandidateSource interface {
	FindResidentsWithHome(ctx context.Context) ([]models.User, error)
}

// Matcher compares a collector position against requester homes and hands
// each match to the dispatcher
type Matcher struct {
	candidates CandidateSource
	dispatcher notify.Dispatcher
	radius     float64
	cooldown   *Cooldown
}

// NewMatcher returns a Matcher. A nil cooldown notifies on every match.
func NewMatcher(candidates CandidateSource, dispatcher notify.Dispatcher, radius float64, cooldown *Cooldown) *Matcher {
	if radius <= 0 {
		radius = DefaultMatchRadius
	}
	return &Matcher{candidates: candidates, dispatcher: dispatcher, radius: radius, cooldown: cooldown}
}

// Match evaluates the collector's current position and returns the events
// that reached at least one channel. Dispatch failures are logged per
// candidate and do not stop the loop.
func (m *Matcher) Match(ctx context.Context, profile *models.CollectorProfile) ([]notify.ProximityEvent, error) {
	if profile.CurrentLat == nil || profile.CurrentLng == nil {
		return nil, nil
	}
	at := Point{Lat: *profile.CurrentLat, Lng: *profile.CurrentLng}

	residents, err := m.candidates.FindResidentsWithHome(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proximity candidates: %w", err)
	}

	var sent []notify.ProximityEvent
	for _, r := range residents {
		if !r.HasHomeLocation() {
			continue
		}
		d := Distance(at, Point{Lat: *r.LocationLat, Lng: *r.LocationLng})
		if d > m.radius {
			continue
		}
		if !m.cooldown.Allow(profile.ID, r.ID) {
			continue
		}

		ev := notify.ProximityEvent{
			CollectorID:    profile.ID,
			VehicleNumber:  profile.VehicleNumber,
			RequesterID:    r.ID,
			RequesterName:  r.FullName,
			RequesterEmail: r.Email,
			DistanceMeters: d,
			Latitude:       at.Lat,
			Longitude:      at.Lng,
		}
		if profile.LastLocationUpdate != nil {
			ev.At = *profile.LastLocationUpdate
		}
		if err := m.dispatcher.Dispatch(ctx, ev); err != nil {
			partial := errors.Is(err, notify.ErrPartialDelivery)
			zap.S().Warnw("failed to dispatch proximity notification",
				"collectorId", profile.ID.Hex(),
				"requesterId", r.ID.Hex(),
				"partial", partial,
				"error", err,
			)
			// the requester was reached on some channel, keep the cooldown
			if !partial {
				m.cooldown.Forget(profile.ID, r.ID)
				continue
			}
		}
		sent = append(sent, ev)
	}
	return sent, nil
}
