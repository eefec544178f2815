package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwaste/smartwaste-api/api/handlers"
	"github.com/smartwaste/smartwaste-api/location"
	"github.com/smartwaste/smartwaste-api/models"
)

func TestLocation_UpdateNotifiesNearbyResident(t *testing.T) {
	env := newTestEnv(t)
	env.resident("awa", 13.4549, -16.5790)
	env.resident("far", 13.2000, -16.0000)
	collector, profile := env.collector("lamin", "BJL 1")
	token := env.token(t, collector)

	rr := env.do(t, "POST", "/api/v1/location/update", token, map[string]float64{"latitude": 13.4551, "longitude": -16.5792})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp handlers.LocationUpdateResponse
	decode(t, rr, &resp)
	assert.Equal(t, 1, resp.Notifications)
	assert.Equal(t, 1, env.dispatcher.count())

	stored := env.world.profile(profile.ID)
	assert.True(t, stored.IsAvailable)
	require.Len(t, stored.CurrentRoute.Coordinates, 1)
	assert.Equal(t, []float64{-16.5792, 13.4551}, stored.CurrentRoute.Coordinates[0])

	// the pair is cooling down
	rr = env.do(t, "POST", "/api/v1/location/update", token, map[string]float64{"lat": 13.4550, "lng": -16.5791})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &resp)
	assert.Equal(t, 0, resp.Notifications)
	assert.Len(t, env.world.profile(profile.ID).CurrentRoute.Coordinates, 2)
}

func TestLocation_UpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	collector, _ := env.collector("lamin", "BJL 1")
	token := env.token(t, collector)

	rr := env.do(t, "POST", "/api/v1/location/update", token, map[string]float64{"latitude": 13.45})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, "POST", "/api/v1/location/update", token, map[string]float64{"latitude": 91, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resident := env.resident("awa", 13.45, -16.57)
	rr = env.do(t, "POST", "/api/v1/location/update", env.token(t, resident), map[string]float64{"latitude": 13.45, "longitude": -16.57})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLocation_SnapshotAndOffline(t *testing.T) {
	env := newTestEnv(t)
	resident := env.resident("awa", 13.45, -16.57)
	collector, profile := env.collector("lamin", "BJL 1")
	collectorToken := env.token(t, collector)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/location/update", collectorToken,
		map[string]float64{"latitude": 13.46, "longitude": -16.58}).Code)

	rr := env.do(t, "GET", "/api/v1/location/collectors", env.token(t, resident), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap location.Snapshot
	decode(t, rr, &snap)
	require.Contains(t, snap, profile.ID.Hex())
	live := snap[profile.ID.Hex()]
	assert.Equal(t, 13.46, live.Latitude)
	assert.Equal(t, "BJL 1", live.CollectorInfo.VehicleNumber)

	rr = env.do(t, "POST", "/api/v1/location/offline", collectorToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, env.world.profile(profile.ID).IsAvailable)

	rr = env.do(t, "GET", "/api/v1/location/collectors", env.token(t, resident), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap = nil
	decode(t, rr, &snap)
	assert.Empty(t, snap)
}

func TestLocation_LegacyGPSRoutes(t *testing.T) {
	env := newTestEnv(t)
	collector, profile := env.collector("lamin", "BJL 1")
	token := env.token(t, collector)

	rr := env.do(t, "POST", "/api/v1/auth/gps/update", token, map[string]float64{"latitude": 13.46, "longitude": -16.58})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, env.world.profile(profile.ID).IsAvailable)

	rr = env.do(t, "POST", "/api/v1/auth/gps/deactivate", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, env.world.profile(profile.ID).IsAvailable)
}

func TestLocation_CollectorDetail(t *testing.T) {
	env := newTestEnv(t)
	resident := env.resident("awa", 13.45, -16.57)
	_, profile := env.collector("lamin", "BJL 1")
	token := env.token(t, resident)

	rr := env.do(t, "GET", "/api/v1/location/collector/"+profile.ID.Hex(), token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var detail handlers.CollectorDetail
	decode(t, rr, &detail)
	assert.Equal(t, profile.ID, detail.CollectorID)
	assert.Equal(t, "lamin", detail.Name)
	assert.Nil(t, detail.RealtimeLocation)

	rr = env.do(t, "GET", "/api/v1/location/collector/"+resident.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLocation_OwnProfile(t *testing.T) {
	env := newTestEnv(t)
	collector, profile := env.collector("lamin", "BJL 1")
	token := env.token(t, collector)

	rr := env.do(t, "GET", "/api/v1/location/collector/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var own models.CollectorProfile
	decode(t, rr, &own)
	assert.Equal(t, profile.ID, own.ID)

	rr = env.do(t, "PUT", "/api/v1/location/collector/me", token, map[string]string{"vehicleType": "tipper"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	stored := env.world.profile(profile.ID)
	assert.Equal(t, "BJL 1", stored.VehicleNumber)
	assert.Equal(t, "tipper", stored.VehicleType)
}

func TestLocation_UpdateOwnProfilePromotes(t *testing.T) {
	env := newTestEnv(t)
	resident := env.resident("awa", 13.45, -16.57)

	rr := env.do(t, "PUT", "/api/v1/location/collector/me", env.token(t, resident), map[string]string{"vehicleNumber": "BJL 7", "vehicleType": "van"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var created models.CollectorProfile
	decode(t, rr, &created)
	assert.Equal(t, resident.ID, created.UserID)
	assert.True(t, env.world.user(resident.ID).HasRole(models.RoleCollector))
}

func TestLocation_Nearby(t *testing.T) {
	env := newTestEnv(t)
	resident := env.resident("awa", 13.4549, -16.5790)
	near, nearProfile := env.collector("lamin", "BJL 1")
	far, _ := env.collector("modou", "BJL 2")
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/location/update", env.token(t, near),
		map[string]float64{"latitude": 13.4560, "longitude": -16.5800}).Code)
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/location/update", env.token(t, far),
		map[string]float64{"latitude": 13.3000, "longitude": -16.4000}).Code)

	rr := env.do(t, "GET", "/api/v1/location/nearby?radius=2000", env.token(t, resident), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var nearby []location.NearbyCollector
	decode(t, rr, &nearby)
	require.Len(t, nearby, 1)
	assert.Equal(t, nearProfile.ID.Hex(), nearby[0].CollectorID)

	rr = env.do(t, "GET", "/api/v1/location/nearby?radius=-1", env.token(t, resident), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	homeless := env.world.addUser(models.User{Username: "new", Roles: []string{models.RoleResident}})
	rr = env.do(t, "GET", "/api/v1/location/nearby", env.token(t, homeless), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLocation_AdminCollectors(t *testing.T) {
	env := newTestEnv(t)
	env.collector("lamin", "BJL 1")
	env.collector("modou", "BJL 2")

	rr := env.do(t, "GET", "/api/v1/location/admin/collectors", env.token(t, env.admin()), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var all []handlers.CollectorDetail
	decode(t, rr, &all)
	assert.Len(t, all, 2)
}
