package identity

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

func newAdmin(us ...models.User) (*Admin, *memUsers, *memProfiles, *memTx) {
	users := newMemUsers(us...)
	profiles := &memProfiles{}
	tx := &memTx{users: users, profiles: profiles}
	return NewAdmin(users, profiles, tx), users, profiles, tx
}

func TestDeleteIdentity_Resident(t *testing.T) {
	u := user("ama", models.RoleResident)
	a, _, _, tx := newAdmin(u)

	require.NoError(t, a.DeleteIdentity(context.Background(), u.ID))
	require.Len(t, tx.plans, 1)
	assert.Equal(t, models.DeletionPlan{UserID: u.ID, DeleteRequests: true}, tx.plans[0])
}

func TestDeleteIdentity_Collector(t *testing.T) {
	u := user("kojo", models.RoleCollector)
	a, _, profiles, tx := newAdmin(u)
	profileID := primitive.NewObjectID()
	profiles.profiles = []models.CollectorProfile{{ID: profileID, UserID: u.ID}}

	require.NoError(t, a.DeleteIdentity(context.Background(), u.ID))
	require.Len(t, tx.plans, 1)
	require.NotNil(t, tx.plans[0].CollectorProfileID)
	assert.Equal(t, profileID, *tx.plans[0].CollectorProfileID)
	assert.False(t, tx.plans[0].DeleteRequests)
}

func TestDeleteIdentity_AdminIsForbidden(t *testing.T) {
	u := user("root", models.RoleAdmin)
	a, _, _, tx := newAdmin(u)

	assert.ErrorIs(t, a.DeleteIdentity(context.Background(), u.ID), apperrors.ErrForbidden)
	assert.Empty(t, tx.plans)
}

func TestDeleteIdentity_NotFound(t *testing.T) {
	a, _, _, _ := newAdmin()
	assert.ErrorIs(t, a.DeleteIdentity(context.Background(), primitive.NewObjectID()), apperrors.ErrNotFound)
}

func TestDeleteIdentity_TransactionFailure(t *testing.T) {
	u := user("ama", models.RoleResident)
	a, users, _, tx := newAdmin(u)
	tx.err = errDown

	assert.ErrorIs(t, a.DeleteIdentity(context.Background(), u.ID), errDown)
	assert.Equal(t, "ama", users.get(u.ID).Username)
}

func TestCreateCollector(t *testing.T) {
	a, users, profiles, _ := newAdmin(user("taken"))
	ctx := context.Background()

	u, p, err := a.CreateCollector(ctx, NewCollector{Username: "kojo", Password: "pw", VehicleNumber: "BJL-9", VehicleType: "tipper"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.True(t, users.get(u.ID).HasRole(models.RoleCollector))
	assert.Len(t, profiles.profiles, 1)

	_, _, err = a.CreateCollector(ctx, NewCollector{Username: "taken", Password: "pw", VehicleNumber: "X"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, _, err = a.CreateCollector(ctx, NewCollector{Username: "yaw", Password: "pw"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEnsureProfile(t *testing.T) {
	u := user("ama", models.RoleResident)
	a, users, profiles, _ := newAdmin(u)
	ctx := context.Background()

	p, err := a.EnsureProfile(ctx, u, "BJL-3", "van")
	require.NoError(t, err)
	assert.Equal(t, "BJL-3", p.VehicleNumber)
	assert.True(t, users.get(u.ID).HasRole(models.RoleCollector))

	p, err = a.EnsureProfile(ctx, u, "", "truck")
	require.NoError(t, err)
	assert.Equal(t, "BJL-3", p.VehicleNumber)
	assert.Equal(t, "truck", p.VehicleType)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, "truck", profiles.profiles[0].VehicleType)
}

func TestEnsureProfile_LostRace(t *testing.T) {
	u := user("ama", models.RoleResident)
	a, users, _, tx := newAdmin(u)
	// another request created the profile after our lookup
	tx.err = fmt.Errorf("collector profile already exists: %w", apperrors.ErrConflict)

	_, err := a.EnsureProfile(context.Background(), u, "BJL-3", "van")

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.False(t, users.get(u.ID).HasRole(models.RoleCollector))
}

func TestListUsers(t *testing.T) {
	a, _, _, _ := newAdmin(user("ama", models.RoleResident), user("kojo", models.RoleCollector))

	collectors, err := a.ListUsers(context.Background(), models.RoleCollector, 50, 0)
	require.NoError(t, err)
	require.Len(t, collectors, 1)
	assert.Equal(t, "kojo", collectors[0].Username)

	_, err = a.ListUsers(context.Background(), "mayor", 50, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEnsureAdmin(t *testing.T) {
	users := newMemUsers()
	ctx := context.Background()
	acct := AdminAccount{Username: "admin", Email: "admin@smartwaste.com", Password: "pw", Phone: "+2201234567"}

	created, err := EnsureAdmin(ctx, users, acct)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, users.get(created.ID).HasRole(models.RoleAdmin))

	again, err := EnsureAdmin(ctx, users, acct)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Len(t, users.users, 1)
}

func TestEnsureAdmin_NoPassword(t *testing.T) {
	users := newMemUsers()
	created, err := EnsureAdmin(context.Background(), users, AdminAccount{Username: "admin"})
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Empty(t, users.users)
}
