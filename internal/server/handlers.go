package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ebenezer-ucz/ebz/internal/ai"
	"github.com/ebenezer-ucz/ebz/internal/auth"
	"github.com/ebenezer-ucz/ebz/internal/report"
	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"degraded": s.st.Degraded(),
		"firstRun": s.gate.FirstRun(),
	})
}

type credentials struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	session, err := s.gate.Login(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: s.newSession(session), Session: session})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.dropSession(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetup creates the founding administrator account. Only valid while
// the roster is empty; afterwards the portal offers login instead.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if !s.gate.FirstRun() {
		writeError(w, http.StatusConflict, "setup already completed")
		return
	}
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	session, err := s.gate.CreateFounder(creds.Name, creds.Username, creds.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: s.newSession(session), Session: session})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	table := r.PathValue("table")
	data, err := s.st.ExportTable(table)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	table := r.PathValue("table")
	ops, ok := s.tableOps(table)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown table %q", table))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	id, err := ops.create(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	table := r.PathValue("table")
	ops, ok := s.tableOps(table)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown table %q", table))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := ops.update(r.PathValue("id"), body); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	table := r.PathValue("table")
	ops, ok := s.tableOps(table)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown table %q", table))
		return
	}
	if !ops.remove(r, r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request, _ auth.Session) {
	writeJSON(w, http.StatusOK, report.Summarize(s.st))
}

func (s *Server) handleAISummary(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	gen := s.generator()
	text := gen.TeamSummary(r.Context(), report.Summarize(s.st))
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func (s *Server) handleAISetlist(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Theme == "" {
		writeError(w, http.StatusBadRequest, "theme is required")
		return
	}
	titles := make([]string, 0, s.st.Songs.Len())
	for _, song := range s.st.Songs.List() {
		titles = append(titles, song.Title)
	}
	gen := s.generator()
	text := gen.SuggestSetlist(r.Context(), req.Theme, titles)
	writeJSON(w, http.StatusOK, map[string]string{"setlist": text})
}

func (s *Server) generator() *ai.Generator {
	if s.gen != nil {
		return s.gen
	}
	return ai.New(ai.Config{}, s.logger)
}

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// tableOps adapts one typed collection to the generic handlers.
type tableOps struct {
	create func(body []byte) (string, error)
	update func(id string, body []byte) error
	remove func(r *http.Request, id string) bool
}

func (s *Server) tableOps(table string) (tableOps, bool) {
	switch table {
	case schema.TableMembers:
		return ops(s.st.Members), true
	case schema.TableFinanceRecords:
		return ops(s.st.FinanceRecords), true
	case schema.TableSubscriptions:
		return ops(s.st.Subscriptions), true
	case schema.TableHarvestRecords:
		return ops(s.st.HarvestRecords), true
	case schema.TableMemberContributions:
		return ops(s.st.Contributions), true
	case schema.TableDisciplinaryCases:
		return ops(s.st.DisciplinaryCases), true
	case schema.TableGroupRules:
		return ops(s.st.GroupRules), true
	case schema.TableMeetingMinutes:
		return ops(s.st.MeetingMinutes), true
	case schema.TableAttendanceRecords:
		return ops(s.st.AttendanceRecords), true
	case schema.TableSongs:
		return ops(s.st.Songs), true
	case schema.TableTeamEvents:
		return ops(s.st.TeamEvents), true
	case schema.TableAnnouncements:
		return ops(s.st.Announcements), true
	case schema.TableCommitteeMembers:
		return ops(s.st.CommitteeMembers), true
	case schema.TableTeamProjects:
		return ops(s.st.TeamProjects), true
	case schema.TableProjectTransactions:
		return ops(s.st.ProjectTransactions), true
	case schema.TableConcertFinances:
		return ops(s.st.ConcertFinances), true
	default:
		return tableOps{}, false
	}
}

// ops builds the adapter for one collection. Creation accepts records
// without an id and assigns one, since remote clients cannot be trusted to
// generate them; updates take the id from the URL and it wins over any id
// in the body.
func ops[T state.Record](c *state.Collection[T]) tableOps {
	return tableOps{
		create: func(body []byte) (string, error) {
			rec, err := decodeWithID[T](body, "")
			if err != nil {
				return "", err
			}
			return rec.RecordID(), c.Create(rec)
		},
		update: func(id string, body []byte) error {
			rec, err := decodeWithID[T](body, id)
			if err != nil {
				return err
			}
			return c.Update(rec)
		},
		remove: func(r *http.Request, id string) bool {
			return c.Delete(r.Context(), id)
		},
	}
}

// decodeWithID decodes a record, forcing the id when one is given and
// assigning a fresh one when the body omits it.
func decodeWithID[T state.Record](body []byte, id string) (T, error) {
	var rec T
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("malformed record: %w", err)
	}
	if id == "" && rec.RecordID() != "" {
		return rec, nil
	}
	if id == "" {
		id = schema.NewID()
	}

	// Round-trip through a map to set the id without per-type setters.
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return rec, fmt.Errorf("malformed record: %w", err)
	}
	idJSON, _ := json.Marshal(id)
	m["id"] = idJSON
	merged, err := json.Marshal(m)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(merged, &rec); err != nil {
		return rec, fmt.Errorf("malformed record: %w", err)
	}
	return rec, nil
}
