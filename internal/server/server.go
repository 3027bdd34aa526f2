// Package server provides the daybook HTTP API server: the chat relay, the
// board and notes REST routes and the live board stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattn/go-runewidth"

	"github.com/jxucoder/daybook/internal/config"
	"github.com/jxucoder/daybook/internal/relay"
	"github.com/jxucoder/daybook/pkg/board"
	"github.com/jxucoder/daybook/pkg/eventbus"
	"github.com/jxucoder/daybook/pkg/model"
	"github.com/jxucoder/daybook/pkg/notes"
	"github.com/jxucoder/daybook/pkg/reminder"
)

// restTimeout bounds the non-streaming routes.
const restTimeout = 30 * time.Second

// Deps are the components the server exposes.
type Deps struct {
	Relay     *relay.Relay
	Board     *board.Board
	Bus       eventbus.Bus
	Notes     *notes.Store        // optional
	Reminders *reminder.Scheduler // optional
	Logger    *slog.Logger
}

// Server is the daybook HTTP API server.
type Server struct {
	config    *config.Config
	relay     *relay.Relay
	board     *board.Board
	bus       eventbus.Bus
	notes     *notes.Store
	reminders *reminder.Scheduler
	log       *slog.Logger
	router    chi.Router
}

// New creates a new Server with all dependencies.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:    cfg,
		relay:     deps.Relay,
		board:     deps.Board,
		bus:       deps.Bus,
		notes:     deps.Notes,
		reminders: deps.Reminders,
		log:       logger,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the reminder loop and the HTTP server. It blocks until ctx is
// cancelled and the server has shut down.
func (s *Server) Start(ctx context.Context) error {
	if s.reminders != nil {
		go s.reminders.Run(ctx)
	}

	srv := &http.Server{
		Addr:    s.config.ServerAddr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("daybook server listening", "addr", s.config.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	if s.notes != nil {
		return s.notes.Close()
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// Streaming routes bound their own lifetime.
	r.Post("/api/chat", s.relay.ServeHTTP)
	r.Get("/api/chat/ws", s.relay.ServeWS)
	r.Get("/api/board/stream", s.handleBoardStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(restTimeout))

		r.Route("/api", func(r chi.Router) {
			r.Get("/tasks", s.handleListTasks)
			r.Post("/tasks", s.handleAddTask)
			r.Post("/tasks/{id}/toggle", s.handleToggleTask)
			r.Delete("/tasks/{id}", s.handleDeleteTask)
			r.Get("/events", s.handleListEvents)

			if s.notes != nil {
				r.Get("/notes", s.handleListNotes)
				r.Post("/notes", s.handleAddNote)
			}
		})
	})

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return r
}

// --- Request/Response types ---

type addTaskRequest struct {
	Title string `json:"title"`
}

type addNoteRequest struct {
	Content string `json:"content"`
}

type boardSnapshot struct {
	Tasks  []model.Task          `json:"tasks"`
	Events []model.CalendarEvent `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Handlers ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.board.SearchTasks(r.URL.Query().Get("q"))
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.board.AddTask(req.Title)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info("task added", "id", task.ID, "title", truncate(task.Title, 60))
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.board.ToggleTask(id)
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.board.DeleteTask(id); err != nil {
		writeBoardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusOK, nonNil(s.board.Events()))
		return
	}

	day, err := time.ParseInLocation(time.DateOnly, date, s.board.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.board.EventsOn(day)))
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.List(r.Context())
	if err != nil {
		s.log.Error("listing notes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	if list == nil {
		list = []*notes.Note{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := s.notes.Add(r.Context(), req.Content)
	if errors.Is(err, notes.ErrEmptyNote) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("adding note", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add note")
		return
	}
	s.log.Info("note added", "id", n.ID, "content", truncate(n.Content, 60))
	writeJSON(w, http.StatusCreated, n)
}

// handleBoardStream sends the current board, then every board and reminder
// event as it happens.
func (s *Server) handleBoardStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the snapshot so no change falls in between.
	ch := s.bus.Subscribe(board.Topic)
	defer s.bus.Unsubscribe(board.Topic, ch)

	// A reconnecting client gets what it missed; anyone else, or a client
	// whose gap is gone from history, starts from a fresh snapshot.
	var sent map[int64]bool
	if missed, ok := s.resume(r); ok {
		sent = make(map[int64]bool, len(missed))
		for _, event := range missed {
			writeSSE(w, event)
			sent[event.ID] = true
		}
		s.log.Debug("board stream resumed", "replayed", len(missed))
	} else {
		snapshot, _ := json.Marshal(boardSnapshot{
			Tasks:  nonNil(s.board.Tasks()),
			Events: nonNil(s.board.Events()),
		})
		writeSSE(w, &model.Event{Topic: board.Topic, Type: "snapshot", Data: string(snapshot), CreatedAt: time.Now().UTC()})
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if sent[event.ID] {
				continue
			}
			writeSSE(w, event)
			flusher.Flush()
		}
	}
}

// resume returns the board events published after the request's
// Last-Event-ID. It reports false when there is no usable id.
func (s *Server) resume(r *http.Request) ([]*model.Event, bool) {
	last, err := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
	if err != nil || last <= 0 {
		return nil, false
	}
	return s.bus.Since(board.Topic, last)
}

// requestLogger logs one line per request with the chi request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Debug("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// --- Helpers ---

func taskID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "task id must be an integer")
		return 0, false
	}
	return id, true
}

func writeBoardError(w http.ResponseWriter, err error) {
	if errors.Is(err, board.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeSSE(w http.ResponseWriter, event *model.Event) {
	data, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, string(data))
}

// truncate shortens s to at most width terminal cells, marking the cut.
func truncate(s string, width int) string {
	return runewidth.Truncate(strings.TrimSpace(s), width, "...")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
