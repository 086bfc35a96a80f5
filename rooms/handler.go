package rooms

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/horriblebox/horriblebox/game"
)

// Server exposes a Store over HTTP and pushes every successful mutation to
// websocket watchers.
type Server struct {
	store *Store
	hub   *WatchHub
	decks *game.Decks
	logf  func(format string, args ...any)
}

func NewServer(store *Store, decks *game.Decks, logf func(format string, args ...any)) *Server {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Server{
		store: store,
		hub:   newWatchHub(),
		decks: decks,
		logf:  logf,
	}
}

// Register mounts the room API:
//   - POST $prefix/api/rooms          → create / join / update
//   - GET  $prefix/api/rooms?code=X   → fetch one room
//   - GET  $prefix/api/rooms/:code/ws → websocket room feed
//   - GET  $prefix/api/decks          → card decks in play
func (s *Server) Register(prefix string, mux *httprouter.Router) {
	mux.POST(prefix+"/api/rooms", s.handleMutation)
	mux.GET(prefix+"/api/rooms", s.handleGet)
	mux.GET(prefix+"/api/rooms/:code/ws", s.handleWatch)
	mux.GET(prefix+"/api/decks", s.handleDecks)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Error: msg})
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	code := game.NormalizeCode(req.Code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing room code")
		return
	}

	var (
		room game.Room
		err  error
	)

	switch req.Action {
	case ActionCreate:
		if req.Room == nil {
			writeError(w, http.StatusBadRequest, "missing room document")
			return
		}
		room, err = s.store.Create(code, *req.Room)
		if err == nil {
			s.logf("ROOMS: Created room %s (host %q, mode %s, to %d points)",
				code, hostName(room), room.GameMode, room.MaxScore)
		}

	case ActionJoin:
		if req.Player == nil {
			writeError(w, http.StatusBadRequest, "missing player")
			return
		}
		room, err = s.store.Join(code, *req.Player)
		if err == nil {
			s.logf("ROOMS: Player %q joined %s (%d players)", req.Player.Name, code, len(room.Players))
		}

	case ActionUpdate:
		if req.Room == nil {
			writeError(w, http.StatusBadRequest, "missing room document")
			return
		}
		room, err = s.store.Update(code, *req.Room)

	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "room not found")
		case errors.Is(err, ErrExists):
			writeError(w, http.StatusConflict, "room code already in use")
		case errors.Is(err, game.ErrDuplicatePlayer):
			writeError(w, http.StatusConflict, "player already in room")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.hub.Broadcast(code, room)
	writeJSON(w, http.StatusOK, Response{Room: &room})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	code := game.NormalizeCode(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing room code")
		return
	}

	room, err := s.store.Get(code)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, Response{Room: &room})
}

func (s *Server) handleDecks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.decks)
}

func hostName(r game.Room) string {
	if p, ok := r.Player(r.HostID); ok {
		return p.Name
	}
	return "?"
}
