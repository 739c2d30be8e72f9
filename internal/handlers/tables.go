// internal/handlers/tables.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/service"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
)

type createTableRequest struct {
	Game      string       `json:"game"`
	Type      table.Type   `json:"type"`
	Options   game.Options `json:"options"`
	AutoStart bool         `json:"autoStart"`
}

// CreateTableHandler opens a table owned by the caller.
func CreateTableHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromRequest(r)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		var req createTableRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(logger, w, r, err)
			return
		}
		if req.Game == "" {
			writeError(logger, w, r, invalid("game is required"))
			return
		}

		t, err := svc.Create(r.Context(), account, req.Game, table.Settings{
			Type:      req.Type,
			Options:   req.Options,
			AutoStart: req.AutoStart,
		})
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		respondTable(logger, w, r, http.StatusCreated, t)
	}
}

// GetTableHandler returns a table including its live game state.
func GetTableHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		t, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		respondTable(logger, w, r, http.StatusOK, t)
	}
}

func respondTable(logger *logrus.Logger, w http.ResponseWriter, r *http.Request, status int, t *table.Table) {
	v, err := newTableView(t, true)
	if err != nil {
		writeError(logger, w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func parseQuery(r *http.Request) (store.Query, error) {
	var (
		q   store.Query
		err error
	)
	if q.From, err = queryTime(r, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryTime(r, "to"); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	q.Cursor = r.URL.Query().Get("cursor")
	return q, nil
}

func respondPage(logger *logrus.Logger, w http.ResponseWriter, r *http.Request, page store.Page) {
	out := PageView{Tables: make([]TableView, 0, len(page.Tables)), Next: page.Next}
	for _, t := range page.Tables {
		v, err := newTableView(t, false)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		out.Tables = append(out.Tables, v)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTablesHandler lists the tables of a game, optionally by status.
func ListTablesHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := r.URL.Query().Get("game")
		if gameID == "" {
			writeError(logger, w, r, invalid("game is required"))
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		status := table.Status(r.URL.Query().Get("status"))
		page, err := svc.ListByGame(r.Context(), gameID, status, q)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		respondPage(logger, w, r, page)
	}
}

// ListAccountTablesHandler lists the tables an account is seated at.
func ListAccountTablesHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := parseID(chi.URLParam(r, "account"), "account")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		page, err := svc.ListByAccount(r.Context(), account, q)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		respondPage(logger, w, r, page)
	}
}

// TableLogHandler returns log entries newest first.
func TableLogHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		since, err := queryTime(r, "since")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		before, err := queryTime(r, "before")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		entries, err := svc.Log(r.Context(), id, since, before, limit)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		if entries == nil {
			entries = []*table.LogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// operationRequest is the union of the bodies table operations accept.
type operationRequest struct {
	Account uuid.UUID    `json:"account"`
	Player  uuid.UUID    `json:"player"`
	Options game.Options `json:"options"`
	Action  *game.Action `json:"action"`
}

type operation func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, req operationRequest) (*table.Table, error)

func simple(fn func(*service.TableService, *http.Request, uuid.UUID, uuid.UUID) (*table.Table, error)) operation {
	return func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, _ operationRequest) (*table.Table, error) {
		return fn(svc, r, id, actor)
	}
}

var operations = map[string]operation{
	"invite": func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, req operationRequest) (*table.Table, error) {
		if req.Account == uuid.Nil {
			return nil, invalid("account is required")
		}
		return svc.Invite(r.Context(), id, actor, req.Account)
	},
	"kick": func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, req operationRequest) (*table.Table, error) {
		if req.Player == uuid.Nil {
			return nil, invalid("player is required")
		}
		return svc.Kick(r.Context(), id, actor, req.Player)
	},
	"force-end-turn": func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, req operationRequest) (*table.Table, error) {
		if req.Player == uuid.Nil {
			return nil, invalid("player is required")
		}
		return svc.ForceEndTurn(r.Context(), id, actor, req.Player)
	},
	"options": func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, req operationRequest) (*table.Table, error) {
		return svc.ChangeOptions(r.Context(), id, actor, req.Options)
	},
	"perform": func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, req operationRequest) (*table.Table, error) {
		if req.Action == nil || req.Action.Kind == "" {
			return nil, invalid("action is required")
		}
		return svc.Perform(r.Context(), id, actor, *req.Action)
	},
	"computers": func(svc *service.TableService, r *http.Request, id, actor uuid.UUID, _ operationRequest) (*table.Table, error) {
		t, _, err := svc.AddComputer(r.Context(), id, actor)
		return t, err
	},
	"join": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Join(r.Context(), id, actor)
	}),
	"accept": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Accept(r.Context(), id, actor)
	}),
	"reject": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Reject(r.Context(), id, actor)
	}),
	"public": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.MakePublic(r.Context(), id, actor)
	}),
	"private": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.MakePrivate(r.Context(), id, actor)
	}),
	"start": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Start(r.Context(), id, actor)
	}),
	"skip": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Skip(r.Context(), id, actor)
	}),
	"end-turn": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.EndTurn(r.Context(), id, actor)
	}),
	"undo": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Undo(r.Context(), id, actor)
	}),
	"leave": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Leave(r.Context(), id, actor)
	}),
	"propose-to-leave": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.ProposeToLeave(r.Context(), id, actor)
	}),
	"agree-to-leave": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.AgreeToLeave(r.Context(), id, actor)
	}),
	"abandon": simple(func(svc *service.TableService, r *http.Request, id, actor uuid.UUID) (*table.Table, error) {
		return svc.Abandon(r.Context(), id, actor)
	}),
}

// TableOperationHandler runs POST /tables/{id}/{operation} as the caller.
func TableOperationHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "operation")
		op, ok := operations[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		account, err := accountFromRequest(r)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		var req operationRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(logger, w, r, err)
			return
		}

		t, err := op(svc, r, id, account, req)
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		respondTable(logger, w, r, http.StatusOK, t)
	}
}

// RatingHandler returns an account's rating in one game.
func RatingHandler(logger *logrus.Logger, svc *service.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := parseID(chi.URLParam(r, "account"), "account")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		rt, err := svc.Rating(r.Context(), account, chi.URLParam(r, "game"))
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rt)
	}
}
