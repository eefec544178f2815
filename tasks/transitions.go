package tasks

import "github.com/smartwaste/smartwaste-api/models"

type edge struct {
	from, to string
}

var (
	adminOnly        = []string{models.RoleAdmin}
	adminOrCollector = []string{models.RoleAdmin, models.RoleCollector}
	adminOrRequester = []string{models.RoleAdmin, models.RoleResident}
)

// transitions lists every legal status change per kind and the roles allowed
// to make it. Anything missing is illegal. Collectors are further limited to
// tasks assigned to them, except for claiming an unassigned pending task.
var transitions = map[models.TaskKind]map[edge][]string{
	models.KindBooking: {
		{models.StatusPending, models.StatusAssigned}:     adminOrCollector,
		{models.StatusPending, models.StatusCancelled}:    adminOrRequester,
		{models.StatusAssigned, models.StatusAssigned}:    adminOrCollector,
		{models.StatusAssigned, models.StatusPending}:     adminOrCollector,
		{models.StatusAssigned, models.StatusInProgress}:  adminOrCollector,
		{models.StatusAssigned, models.StatusCancelled}:   adminOrRequester,
		{models.StatusInProgress, models.StatusCompleted}: adminOrCollector,
		{models.StatusInProgress, models.StatusCancelled}: adminOnly,
	},
	models.KindReport: {
		{models.StatusPending, models.StatusAssigned}:    adminOrCollector,
		{models.StatusPending, models.StatusRejected}:    adminOnly,
		{models.StatusAssigned, models.StatusAssigned}:   adminOrCollector,
		{models.StatusAssigned, models.StatusPending}:    adminOrCollector,
		{models.StatusAssigned, models.StatusInProgress}: adminOrCollector,
		{models.StatusAssigned, models.StatusRejected}:   adminOnly,
		{models.StatusInProgress, models.StatusCleared}:  adminOrCollector,
		{models.StatusInProgress, models.StatusRejected}: adminOnly,
	},
}

// rule returns the roles allowed to move a task of kind from one status to
// another, and whether the move is legal at all
func rule(kind models.TaskKind, from, to string) ([]string, bool) {
	roles, ok := transitions[kind][edge{from: from, to: to}]
	return roles, ok
}

// roleOf picks the role an identity acts under. Admin wins over collector,
// collector over requester.
func roleOf(u models.User) string {
	for _, r := range []string{models.RoleAdmin, models.RoleCollector, models.RoleResident} {
		if u.HasRole(r) {
			return r
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
