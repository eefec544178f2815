package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

func newAccounts(us ...models.User) (*Accounts, *memUsers, *memProfiles) {
	users := newMemUsers(us...)
	profiles := &memProfiles{}
	tx := &memTx{users: users, profiles: profiles}
	return NewAccounts(users, tx, NewEnforcer(users, profiles)), users, profiles
}

func TestRegister_Resident(t *testing.T) {
	a, users, _ := newAccounts()

	u, err := a.Register(context.Background(), Registration{Username: "ama", Password: "s3cret", Email: "ama@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleResident}, u.Roles)
	assert.Equal(t, "email", u.TwoFactorMethod)

	stored := users.get(u.ID)
	assert.NotEqual(t, "s3cret", stored.Password)
	assert.NotEmpty(t, stored.Password)
}

func TestRegister_CollectorGetsProfile(t *testing.T) {
	a, _, profiles := newAccounts()

	u, err := a.Register(context.Background(), Registration{
		Username: "kojo", Password: "pw", Phone: "+2207000000", Role: models.RoleCollector, VehicleNumber: "BJL-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleCollector}, u.Roles)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, u.ID, profiles.profiles[0].UserID)
	assert.Equal(t, "BJL-1", profiles.profiles[0].VehicleNumber)
}

func TestRegister_Validation(t *testing.T) {
	a, _, _ := newAccounts()
	_, err := a.Register(context.Background(), Registration{Username: "x"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = a.Register(context.Background(), Registration{Username: "x", Password: "y"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRegister_TwoFactorNeedsEmail(t *testing.T) {
	a, users, _ := newAccounts()

	_, err := a.Register(context.Background(), Registration{
		Username: "kojo", Password: "pw", Phone: "+2207000000", TwoFactorEnabled: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = a.Register(context.Background(), Registration{
		Username: "kojo", Password: "pw", Email: "kojo@example.com", TwoFactorEnabled: true, TwoFactorMethod: "phone",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, users.users)

	u, err := a.Register(context.Background(), Registration{Username: "kojo", Password: "pw", Phone: "+2207000000"})
	require.NoError(t, err)
	assert.False(t, u.TwoFactorEnabled)
}

func TestRegister_Duplicate(t *testing.T) {
	a, _, _ := newAccounts(user("ama", models.RoleResident))

	_, err := a.Register(context.Background(), Registration{Username: "ama", Password: "pw", Email: "new@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = a.Register(context.Background(), Registration{Username: "new", Password: "pw", Email: "ama@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	a, _, _ := newAccounts()
	ctx := context.Background()
	_, err := a.Register(ctx, Registration{Username: "ama", Password: "s3cret", Email: "ama@example.com"})
	require.NoError(t, err)

	u, err := a.Authenticate(ctx, "ama@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ama", u.Username)

	_, err = a.Authenticate(ctx, "ama", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = a.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = a.Authenticate(ctx, "ama", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMe_SyncsCollectorRole(t *testing.T) {
	u := user("kojo", models.RoleResident)
	a, users, profiles := newAccounts(u)
	profiles.profiles = append(profiles.profiles, models.CollectorProfile{UserID: u.ID})

	me, err := a.Me(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, me.HasRole(models.RoleCollector))
	assert.True(t, users.get(u.ID).HasRole(models.RoleCollector))
}
