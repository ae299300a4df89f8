// Package api exposes the roster service as a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/tcriess/lightspeed-roster/auth"
	"github.com/tcriess/lightspeed-roster/commands"
	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/roster"
	"github.com/tcriess/lightspeed-roster/service"
	"github.com/tcriess/lightspeed-roster/types"
)

const (
	participantHeader = "X-Participant-Id"
	tiersHeader       = "X-Participant-Tiers"
	providerHeader    = "X-OIDC-Provider"
)

var errUnauthenticated = errors.New("not authenticated")
var errAdminOnly = errors.New("admin only")

type ctxKey int

const callerKey ctxKey = 0

type Server struct {
	svc *service.Service
	cfg *config.Config
}

// NewRouter sets up all routes.
func NewRouter(svc *service.Service, cfg *config.Config) *mux.Router {
	s := &Server{svc: svc, cfg: cfg}
	router := mux.NewRouter()
	router.Use(s.identify)
	channel := "/rosters/{channel:[A-Za-z0-9][A-Za-z0-9_-]*}"

	router.HandleFunc("/rosters", s.listRosters).Methods(http.MethodGet)
	router.HandleFunc(channel, s.getRoster).Methods(http.MethodGet)
	router.HandleFunc(channel, s.admin(s.openRoster)).Methods(http.MethodPost)
	router.HandleFunc(channel, s.admin(s.updateRoster)).Methods(http.MethodPatch)
	router.HandleFunc(channel, s.admin(s.closeRoster)).Methods(http.MethodDelete)
	router.HandleFunc(channel+"/signup", s.signUp).Methods(http.MethodPost)
	router.HandleFunc(channel+"/signup", s.withdraw).Methods(http.MethodDelete)
	router.HandleFunc(channel+"/participants/{participant}", s.admin(s.assign)).Methods(http.MethodPut)
	router.HandleFunc(channel+"/participants/{participant}", s.admin(s.remove)).Methods(http.MethodDelete)
	router.HandleFunc(channel+"/fill", s.admin(s.fill)).Methods(http.MethodPost)
	router.HandleFunc(channel+"/limits", s.admin(s.setLimits)).Methods(http.MethodPut)
	router.HandleFunc(channel+"/runs", s.admin(s.recordRuns)).Methods(http.MethodPost)
	router.HandleFunc("/participants/{participant}", s.admin(s.purge)).Methods(http.MethodDelete)
	router.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	router.HandleFunc("/runs/{participant}", s.getRun).Methods(http.MethodGet)
	router.HandleFunc("/runs/{participant}", s.admin(s.increaseRuns)).Methods(http.MethodPost)
	router.HandleFunc("/me/default", s.setDefault).Methods(http.MethodPut)
	return router
}

// identify authenticates the caller with an OIDC ID token, passed as "Authorization: Bearer <token>" or as the
// id_token/provider query parameters. Without configured providers the participant headers are trusted.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var caller *service.Caller
		if len(s.cfg.OIDCConfigs) == 0 {
			if id := r.Header.Get(participantHeader); id != "" {
				caller = &service.Caller{ID: id, Tiers: parseTiers(r.Header.Get(tiersHeader))}
			}
		} else {
			vals := r.URL.Query()
			idToken := vals.Get("id_token")
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				idToken = strings.TrimPrefix(h, "Bearer ")
			}
			provider := vals.Get("provider")
			if h := r.Header.Get(providerHeader); h != "" {
				provider = h
			}
			if idToken != "" {
				identity, err := auth.Authenticate(r.Context(), idToken, provider, s.cfg)
				if err != nil {
					writeError(w, http.StatusUnauthorized, err)
					return
				}
				if identity != nil {
					caller = &service.Caller{ID: identity.ID, Tiers: identity.Tiers}
				}
			}
		}
		if caller != nil {
			r = r.WithContext(context.WithValue(r.Context(), callerKey, caller))
		}
		next.ServeHTTP(w, r)
	})
}

func parseTiers(s string) []int {
	tiers := make([]int, 0)
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			tiers = append(tiers, n)
		}
	}
	return tiers
}

func callerFrom(r *http.Request) *service.Caller {
	c, _ := r.Context().Value(callerKey).(*service.Caller)
	return c
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := callerFrom(r)
		if c == nil {
			writeError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		if !s.svc.IsAdmin(c.ID) {
			writeError(w, http.StatusForbidden, errAdminOnly)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		globals.AppLogger.Error("could not write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusOf maps service errors to http status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, roster.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRosterExists), errors.Is(err, roster.ErrAlreadySignedUp):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidChannel),
		errors.Is(err, roster.ErrInvalidParticipant),
		errors.Is(err, roster.ErrInvalidLimit),
		errors.Is(err, roster.ErrInvalidTier),
		errors.Is(err, types.ErrInvalidRole),
		errors.Is(err, types.ErrInvalidSchedule),
		errors.Is(err, commands.ErrNoDefaultRole),
		errors.Is(err, commands.ErrInvalidLimits),
		errors.Is(err, commands.ErrInvalidCommand):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		globals.AppLogger.Error("request failed", "error", err)
	}
	writeError(w, status, err)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
