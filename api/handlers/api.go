package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/api/scheduler"
	"github.com/smartwaste/smartwaste-api/config"
	"github.com/smartwaste/smartwaste-api/databases"
	"github.com/smartwaste/smartwaste-api/identity"
	"github.com/smartwaste/smartwaste-api/location"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/notify"
	"github.com/smartwaste/smartwaste-api/tasks"
)

// requestTimeout bounds every non-streaming request
const requestTimeout = 30 * time.Second

// Stores are the collections the API works on
type Stores struct {
	Users      databases.UserDatabase
	Collectors databases.CollectorDatabase
	Bookings   databases.TaskDatabase
	Reports    databases.TaskDatabase
	Identity   databases.IdentityTransactor
	Locks      databases.SchedulerLockDatabase
}

// App stores the router and db connection, so it can be reused
type App struct {
	Router     *mux.Router
	Config     config.Config
	Stores     Stores
	Dispatcher notify.Dispatcher
	Codes      notify.CodeSender
	Scheduler  *scheduler.Scheduler
	Metrics    *api.Metrics

	client  databases.ClientHelper
	closers []io.Closer
}

// New creates a new mux router and all the routes. Stores, Dispatcher and
// Codes must be set; missing notifiers fall back to the log.
func (a *App) New() *mux.Router {
	if a.Dispatcher == nil {
		a.Dispatcher = notify.LogDispatcher{}
	}
	if a.Codes == nil {
		a.Codes = notify.LogCodeSender{}
	}
	if a.Metrics == nil {
		a.Metrics = api.NewMetrics()
	}
	s := a.Stores

	tokens := api.NewTokens(a.Config.JWTSecret, a.Config.TokenTTL)
	guard := api.NewGuard(tokens, s.Users)

	enforcer := identity.NewEnforcer(s.Users, s.Collectors)
	accounts := identity.NewAccounts(s.Users, s.Identity, enforcer)
	admin := identity.NewAdmin(s.Users, s.Collectors, s.Identity)

	cooldown := location.NewCooldown(a.Config.ProximityCooldown)
	store := location.NewStore(s.Collectors, s.Users, a.Config.StalenessWindow)
	matcher := location.NewMatcher(s.Users, a.Dispatcher, a.Config.ProximityRadiusMeters, cooldown)
	feed := location.NewFeed(store, a.Config.FeedInterval)

	machine := tasks.NewMachine(s.Collectors, s.Users, s.Bookings, s.Reports)
	intake := tasks.NewIntake(s.Bookings, s.Reports, s.Users, machine)

	a.Scheduler = scheduler.NewScheduler(enforcer, cooldown, s.Collectors, s.Locks, a.Config.StalenessWindow)

	au := Auth{Accounts: accounts, TwoFactor: identity.NewTwoFactor(s.Users, a.Codes), Tokens: tokens}
	l := Location{Store: store, Matcher: matcher, CDB: s.Collectors, UDB: s.Users, Admin: admin, Radius: a.Config.ProximityRadiusMeters}
	st := Stream{Feed: feed}
	b := Booking{Intake: intake, Machine: machine}
	re := Report{Intake: intake, Machine: machine}
	t := Task{Machine: machine}
	ad := Admin{Admin: admin, Metrics: a.Metrics}
	p := Photo{Cloudinary: a.Config.Cloudinary}

	// secured requires a session and, when roles are given, one of them
	secured := func(h http.HandlerFunc, roles ...string) http.Handler {
		var next http.Handler = h
		if len(roles) > 0 {
			next = api.RequireRole(roles...)(next)
		}
		return guard.Middleware(next)
	}

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", api.HealthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.MetricsMiddleware(a.Metrics), api.TimeoutMiddleware(requestTimeout))

	apiCreate.Handle("/auth/register", http.HandlerFunc(au.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/login", http.HandlerFunc(au.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/verify-2fa", http.HandlerFunc(au.VerifyTwoFactorHandler)).Methods("POST")
	apiCreate.Handle("/auth/resend-2fa", http.HandlerFunc(au.ResendTwoFactorHandler)).Methods("POST")
	apiCreate.Handle("/auth/me", secured(au.MeHandler)).Methods("GET")
	// older mobile clients report positions through the auth routes
	apiCreate.Handle("/auth/gps/update", secured(l.UpdateLocationHandler, models.RoleCollector)).Methods("POST")
	apiCreate.Handle("/auth/gps/deactivate", secured(l.GoOfflineHandler, models.RoleCollector)).Methods("POST")

	apiCreate.Handle("/location/update", secured(l.UpdateLocationHandler, models.RoleCollector)).Methods("POST")
	apiCreate.Handle("/location/offline", secured(l.GoOfflineHandler, models.RoleCollector)).Methods("POST")
	apiCreate.Handle("/location/collectors", secured(l.ActiveCollectorsHandler)).Methods("GET")
	apiCreate.Handle("/location/collector/me", secured(l.OwnProfileHandler, models.RoleCollector)).Methods("GET")
	apiCreate.Handle("/location/collector/me", secured(l.UpdateOwnProfileHandler)).Methods("PUT")
	apiCreate.Handle("/location/collector/{collectorId}", secured(l.CollectorLocationHandler)).Methods("GET")
	apiCreate.Handle("/location/nearby", secured(l.NearbyHandler, models.RoleResident)).Methods("GET")
	apiCreate.Handle("/location/admin/collectors", secured(l.AllCollectorsAdminHandler, models.RoleAdmin)).Methods("GET")
	apiCreate.Handle("/location/stream", secured(st.EventStreamHandler, models.RoleResident, models.RoleAdmin)).Methods("GET")
	apiCreate.Handle("/ws/locations", secured(st.WebSocketHandler, models.RoleResident, models.RoleAdmin)).Methods("GET")

	apiCreate.Handle("/bookings", secured(b.CreateBookingHandler, models.RoleResident)).Methods("POST")
	apiCreate.Handle("/bookings/resident", secured(b.ResidentBookingsHandler, models.RoleResident)).Methods("GET")
	apiCreate.Handle("/bookings/collector", secured(b.CollectorBookingsHandler, models.RoleCollector)).Methods("GET")
	apiCreate.Handle("/bookings/all", secured(b.AllBookingsHandler, models.RoleAdmin)).Methods("GET")
	apiCreate.Handle("/bookings/{id}/status", secured(b.UpdateBookingStatusHandler)).Methods("PUT")

	apiCreate.Handle("/reports", secured(re.CreateReportHandler, models.RoleResident)).Methods("POST")
	apiCreate.Handle("/reports/user", secured(re.UserReportsHandler, models.RoleResident)).Methods("GET")
	apiCreate.Handle("/reports/collector", secured(re.CollectorReportsHandler, models.RoleCollector)).Methods("GET")
	apiCreate.Handle("/reports/all", secured(re.AllReportsHandler, models.RoleAdmin)).Methods("GET")
	apiCreate.Handle("/reports/photo-signature", secured(p.SignatureHandler, models.RoleResident)).Methods("POST")
	apiCreate.Handle("/reports/{id}/status", secured(re.UpdateReportStatusHandler)).Methods("PUT")

	apiCreate.Handle("/tasks", secured(t.TasksHandler, models.RoleAdmin)).Methods("GET")

	apiCreate.Handle("/admin/collectors", secured(ad.CreateCollectorHandler, models.RoleAdmin)).Methods("POST")
	apiCreate.Handle("/admin/collectors/{userId}", secured(ad.DeleteUserHandler, models.RoleAdmin)).Methods("DELETE")
	apiCreate.Handle("/admin/users", secured(ad.UsersHandler, models.RoleAdmin)).Methods("GET")
	apiCreate.Handle("/admin/users/{userId}", secured(ad.DeleteUserHandler, models.RoleAdmin)).Methods("DELETE")
	apiCreate.Handle("/admin/metrics", secured(ad.MetricsHandler, models.RoleAdmin)).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	a.client = client
	zap.S().Info("smartwaste-api has connected to the database")

	db := databases.NewDatabase(&a.Config, client)
	if err := databases.EnsureIndexes(ctx, db); err != nil {
		zap.S().Errorw("failed to create indexes", "error", err)
		return err
	}
	a.Stores = Stores{
		Users:      databases.NewUserDatabase(db),
		Collectors: databases.NewCollectorDatabase(db),
		Bookings:   databases.NewBookingDatabase(db),
		Reports:    databases.NewReportDatabase(db),
		Identity:   databases.NewIdentityTransactor(db),
		Locks:      databases.NewSchedulerLockDatabase(db),
	}
	a.setupNotifiers()

	_, err = identity.EnsureAdmin(ctx, a.Stores.Users, identity.AdminAccount{
		Username: a.Config.Admin.Username,
		Email:    a.Config.Admin.Email,
		Password: a.Config.Admin.Password,
		Phone:    a.Config.Admin.Phone,
	})
	if err != nil {
		zap.S().Errorw("failed to ensure admin account", "error", err)
		return err
	}

	// initialize api router
	a.Router = a.New()
	a.Scheduler.Start()
	return nil
}

// setupNotifiers picks the delivery channels that are configured. Email and
// the event exchange are both optional; without either, events are logged.
func (a *App) setupNotifiers() {
	var dispatchers notify.Multi
	if a.Config.SendGridAPIKey != "" {
		sg := notify.NewSendGrid(a.Config.SendGridAPIKey, a.Config.EmailFrom)
		dispatchers = append(dispatchers, sg)
		a.Codes = sg
	} else {
		zap.S().Warnw("SENDGRID_API_KEY is not set, codes and notifications are logged only")
		a.Codes = notify.LogCodeSender{}
	}
	if a.Config.AMQPURL != "" {
		pub, err := notify.DialAMQP(a.Config.AMQPURL, a.Config.AMQPExchange)
		if err != nil {
			zap.S().Errorw("failed to connect to event exchange, continuing without it", "error", err)
		} else {
			dispatchers = append(dispatchers, pub)
			a.closers = append(a.closers, pub)
		}
	}
	if len(dispatchers) == 0 {
		a.Dispatcher = notify.LogDispatcher{}
		return
	}
	a.Dispatcher = dispatchers
}

// Close stops background work and releases connections
func (a *App) Close(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			zap.S().Warnw("failed to close", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}
