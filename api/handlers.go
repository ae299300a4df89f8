package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tcriess/lightspeed-roster/commands"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/roster"
	"github.com/tcriess/lightspeed-roster/service"
	"github.com/tcriess/lightspeed-roster/types"
)

type openRequest struct {
	Title       string         `json:"title"`
	Leader      string         `json:"leader"`
	ScheduledAt types.Schedule `json:"scheduled_at"`
	Limits      *types.Limits  `json:"limits"`
	AccessTier  int            `json:"access_tier"`
}

type updateRequest struct {
	Title       *string         `json:"title"`
	Leader      *string         `json:"leader"`
	ScheduledAt *types.Schedule `json:"scheduled_at"`
	AccessTier  *int            `json:"access_tier"`
	Memo        *string         `json:"memo"`
}

// signUpRequest is either a chat style command ("!su dps late") or the explicit fields.
type signUpRequest struct {
	Command string      `json:"command"`
	Role    *types.Role `json:"role"`
	Note    *string     `json:"note"`
	Backup  bool        `json:"backup"`
}

type roleRequest struct {
	Role *types.Role `json:"role"`
}

var errMissingRole = fmt.Errorf("%w: missing role", types.ErrInvalidRole)

type placementResponse struct {
	Placement string `json:"placement"`
}

type slotResponse struct {
	Role   types.Role `json:"role"`
	Backup bool       `json:"backup"`
	Note   string     `json:"note"`
}

type moveResponse struct {
	Role        types.Role `json:"role"`
	Participant string     `json:"participant"`
	Note        string     `json:"note"`
}

func moves(ms []roster.Move) []moveResponse {
	res := make([]moveResponse, len(ms))
	for i, m := range ms {
		res[i] = moveResponse{Role: m.Role, Participant: m.Participant, Note: m.Note}
	}
	return res
}

func (s *Server) listRosters(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.List(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getRoster(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Get(r.Context(), mux.Vars(r)["channel"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) openRoster(w http.ResponseWriter, r *http.Request) {
	req := openRequest{ScheduledAt: types.ASAP()}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Open(r.Context(), mux.Vars(r)["channel"], req.Title, req.Leader, req.ScheduledAt, req.Limits, req.AccessTier)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) updateRoster(w http.ResponseWriter, r *http.Request) {
	req := updateRequest{}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Update(r.Context(), mux.Vars(r)["channel"], service.Patch{
		Title:       req.Title,
		Leader:      req.Leader,
		ScheduledAt: req.ScheduledAt,
		AccessTier:  req.AccessTier,
		Memo:        req.Memo,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) closeRoster(w http.ResponseWriter, r *http.Request) {
	recordRuns := r.URL.Query().Get("record_runs") == "true"
	counted, err := s.svc.Close(r.Context(), mux.Vars(r)["channel"], recordRuns)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"counted": counted})
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	if c == nil {
		writeError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}
	req := signUpRequest{}
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	channel := mux.Vars(r)["channel"]
	var placement roster.Placement
	var err error
	if req.Command != "" {
		placement, err = s.svc.SignUpCommand(ctx, channel, *c, req.Command)
	} else {
		rr := roster.Request{Backup: req.Backup}
		if req.Note != nil {
			rr.Note = *req.Note
			rr.HasNote = true
		}
		if req.Role != nil {
			rr.Role = *req.Role
		} else if rr.Role, err = s.svc.DefaultRole(ctx, c.ID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				err = commands.ErrNoDefaultRole
			}
			fail(w, err)
			return
		}
		placement, err = s.svc.SignUp(ctx, channel, *c, rr)
	}
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placementResponse{Placement: placement.String()})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	if c == nil {
		writeError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}
	slot, err := s.svc.Withdraw(r.Context(), mux.Vars(r)["channel"], c.ID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{Role: slot.Role, Backup: slot.Backup, Note: slot.Note})
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	req := roleRequest{}
	if !decode(w, r, &req) {
		return
	}
	if req.Role == nil {
		fail(w, errMissingRole)
		return
	}
	vars := mux.Vars(r)
	placement, err := s.svc.AdminAssign(r.Context(), vars["channel"], vars["participant"], *req.Role)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placementResponse{Placement: placement.String()})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot, err := s.svc.AdminRemove(r.Context(), vars["channel"], vars["participant"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{Role: slot.Role, Backup: slot.Backup, Note: slot.Note})
}

func (s *Server) fill(w http.ResponseWriter, r *http.Request) {
	ms, err := s.svc.Fill(r.Context(), mux.Vars(r)["channel"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moves(ms))
}

func (s *Server) setLimits(w http.ResponseWriter, r *http.Request) {
	limits := types.Limits{}
	if !decode(w, r, &limits) {
		return
	}
	ms, err := s.svc.SetLimits(r.Context(), mux.Vars(r)["channel"], limits)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moves(ms))
}

func (s *Server) recordRuns(w http.ResponseWriter, r *http.Request) {
	req := struct {
		ScheduledAt *types.Schedule `json:"scheduled_at"`
	}{}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	counted, err := s.svc.RecordRuns(r.Context(), mux.Vars(r)["channel"], req.ScheduledAt)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"counted": counted})
}

func (s *Server) purge(w http.ResponseWriter, r *http.Request) {
	channels, err := s.svc.PurgeParticipant(r.Context(), mux.Vars(r)["participant"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"channels": channels})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.RunRecords(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.RunRecord(r.Context(), mux.Vars(r)["participant"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) increaseRuns(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.IncreaseRuns(r.Context(), mux.Vars(r)["participant"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) setDefault(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	if c == nil {
		writeError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}
	req := roleRequest{}
	if !decode(w, r, &req) {
		return
	}
	if req.Role == nil {
		fail(w, errMissingRole)
		return
	}
	if err := s.svc.SetDefaultRole(r.Context(), c.ID, *req.Role); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
