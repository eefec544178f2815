package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/identity"
	"github.com/smartwaste/smartwaste-api/models"
)

// Auth handles registration, login and the one-time code flow
type Auth struct {
	Accounts  *identity.Accounts
	TwoFactor *identity.TwoFactor
	Tokens    *api.Tokens
}

type registerRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Role             string `json:"role"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	TwoFactorMethod  string `json:"twoFactorMethod"`
	VehicleNumber    string `json:"vehicleNumber"`
	VehicleType      string `json:"vehicleType"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type challengeRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// SessionResponse carries a session token and the signed in identity
type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ChallengeResponse asks the client to submit a one-time code
type ChallengeResponse struct {
	TwoFactorRequired bool   `json:"twoFactorRequired"`
	TempToken         string `json:"tempToken"`
	TwoFactorMethod   string `json:"twoFactorMethod,omitempty"`
}

// RegisterHandler creates an account
func (a Auth) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.Accounts.Register(ctx, identity.Registration{
		Username:         req.Username,
		Password:         req.Password,
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		Role:             req.Role,
		TwoFactorEnabled: req.TwoFactorEnabled,
		TwoFactorMethod:  req.TwoFactorMethod,
		VehicleNumber:    req.VehicleNumber,
		VehicleType:      req.VehicleType,
	})
	if err != nil {
		writeError(w, "failed to register user", err)
		return
	}
	if user.TwoFactorEnabled {
		a.challenge(w, r, user)
		return
	}
	a.session(w, user, http.StatusCreated)
}

// LoginHandler checks credentials and starts a session, or a code challenge
// when the account has one-time codes enabled
func (a Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	login := req.Email
	if login == "" {
		login = req.Username
	}
	if login == "" {
		login = req.Phone
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.Accounts.Authenticate(ctx, login, req.Password)
	if err != nil {
		writeError(w, "failed to log in", err)
		return
	}
	if identity.Required(*user) {
		a.challenge(w, r, user)
		return
	}
	a.session(w, user, http.StatusOK)
}

// VerifyTwoFactorHandler exchanges a challenge token and a valid code for a session
func (a Auth) VerifyTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims, ok := a.challengeClaims(w, r, req.TempToken)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.TwoFactor.Verify(ctx, claims.UserObjectID(), req.Code)
	if err != nil {
		writeError(w, "failed to verify code", err)
		return
	}
	a.session(w, user, http.StatusOK)
}

// ResendTwoFactorHandler sends a fresh code for a pending challenge
func (a Auth) ResendTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims, ok := a.challengeClaims(w, r, req.TempToken)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := a.TwoFactor.Resend(ctx, claims.UserObjectID()); err != nil {
		writeError(w, "failed to resend code", err)
		return
	}
	temp, err := a.Tokens.IssueChallenge(claims.UserObjectID())
	if err != nil {
		writeError(w, "failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeResponse{TwoFactorRequired: true, TempToken: temp})
}

// MeHandler returns the caller's identity
func (a Auth) MeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.Accounts.Me(ctx, *caller)
	if err != nil {
		writeError(w, "failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a Auth) session(w http.ResponseWriter, user *models.User, status int) {
	token, err := a.Tokens.Issue(user.ID)
	if err != nil {
		writeError(w, "failed to issue token", err)
		return
	}
	writeJSON(w, status, SessionResponse{Token: token, User: user})
}

func (a Auth) challenge(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := a.TwoFactor.Issue(ctx, *user); err != nil {
		writeError(w, "failed to issue verification code", err)
		return
	}
	temp, err := a.Tokens.IssueChallenge(user.ID)
	if err != nil {
		writeError(w, "failed to issue token", err)
		return
	}
	zap.S().Infow("verification code issued", "userId", user.ID.Hex())
	writeJSON(w, http.StatusOK, ChallengeResponse{
		TwoFactorRequired: true,
		TempToken:         temp,
		TwoFactorMethod:   user.TwoFactorMethod,
	})
}

// challengeClaims reads the challenge token from the body or the Authorization header
func (a Auth) challengeClaims(w http.ResponseWriter, r *http.Request, token string) (*api.Claims, bool) {
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		writeError(w, "tempToken is required", errValidation("tempToken is required"))
		return nil, false
	}
	claims, err := a.Tokens.Parse(token)
	if err != nil {
		writeError(w, "invalid or expired temp token", err)
		return nil, false
	}
	if !claims.TwoFactor {
		writeError(w, "invalid temp token", errUnauthorized("not a verification token"))
		return nil, false
	}
	return claims, true
}
