// Package web exposes a merge session over HTTP so that a UI can list
// changes, resolve them and follow progress through server-sent events.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/merge-assist/pkg/conflict"
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/merge"
	"github.com/ritzau/merge-assist/pkg/model"
	"github.com/ritzau/merge-assist/pkg/pubsub"
	"github.com/ritzau/merge-assist/pkg/watcher"
)

// SideView is one side of a change as shown to the UI.
type SideView struct {
	Kind    diff.Kind  `json:"kind"`
	Label   string     `json:"label"`
	Tooltip string     `json:"tooltip,omitempty"`
	Color   diff.Color `json:"color"`
}

// ChangeView is one row of a graph's change list.
type ChangeView struct {
	Index     int                 `json:"index"`
	Label     string              `json:"label"`
	Color     diff.Color          `json:"color"`
	Kind      diff.Kind           `json:"kind"`
	Conflict  bool                `json:"conflict"`
	State     conflict.MergeState `json:"state"`
	Remote    *SideView           `json:"remote,omitempty"`
	Local     *SideView           `json:"local,omitempty"`
	Available merge.Availability  `json:"available"`
}

// SessionView is the payload of GET /api/session.
type SessionView struct {
	merge.Status
	Stale *watcher.ChangeAnalysis `json:"stale,omitempty"`
}

// FinishFunc receives the merged document when the UI finishes the session.
type FinishFunc func(*model.Document) error

// Server represents the web server. Requests that touch the session are
// serialized; merge operations are never concurrent.
type Server struct {
	mu        sync.Mutex
	router    *mux.Router
	session   *merge.Session
	publisher *pubsub.SSEPublisher
	stale     *watcher.ChangeAnalysis
	onFinish  FinishFunc
}

// NewServer creates a server publishing through publisher. The session is
// attached with SetSession, after it was created with the server's callbacks.
func NewServer(publisher *pubsub.SSEPublisher, onFinish FinishFunc) *Server {
	if publisher == nil {
		publisher = pubsub.NewSSEPublisher()
	}
	publisher.DefaultTopics()
	s := &Server{
		router:    mux.NewRouter(),
		publisher: publisher,
		onFinish:  onFinish,
	}
	s.setupRoutes()
	return s
}

// SessionOptions returns opts with the callbacks that feed the server's
// topics.
func (s *Server) SessionOptions(opts merge.Options) merge.Options {
	opts.OnGraphChanged = s.PublishGraphChanged
	opts.OnStatus = s.PublishStatus
	return opts
}

// SetSession attaches the session to serve.
func (s *Server) SetSession(session *merge.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.stale = nil
}

// PublishGraphChanged publishes a graph_changed event. It runs inside
// session operations and must not take the server lock.
func (s *Server) PublishGraphChanged(graph string) {
	payload := pubsub.GraphChanged{Graph: graph}
	if s.session != nil {
		if t, err := s.session.Transaction(graph); err == nil {
			payload.Nodes = t.Target().NodeCount()
			payload.Fingerprint = model.Fingerprint(t.Target())
		}
	}
	if err := s.publisher.Publish(pubsub.TopicGraphChanged, "changed", payload); err != nil {
		logging.Warn("failed to publish graph change", "graph", graph, "error", err)
	}
}

// PublishStatus publishes a merge_status event.
func (s *Server) PublishStatus(st merge.Status) {
	eventType := "status"
	if st.Closed {
		eventType = "closed"
	}
	if err := s.publisher.Publish(pubsub.TopicMergeStatus, eventType, st); err != nil {
		logging.Warn("failed to publish merge status", "error", err)
	}
}

// MarkStale records that revision files changed on disk and tells
// subscribers.
func (s *Server) MarkStale(a *watcher.ChangeAnalysis) {
	s.mu.Lock()
	s.stale = a
	s.mu.Unlock()
	logging.Warn("merge session is stale", "reason", a.Message())
	if err := s.publisher.Publish(pubsub.TopicMergeStatus, "stale", a); err != nil {
		logging.Warn("failed to publish stale session", "error", err)
	}
}

// Handler returns the router wrapped in the request logging middleware.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/{topic:merge_status|graph_changed}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/session", s.handleSession).Methods("GET")
	s.router.HandleFunc("/api/session/auto", s.handleAutoMerge).Methods("POST")
	s.router.HandleFunc("/api/session/finish", s.handleFinish).Methods("POST")
	s.router.HandleFunc("/api/session/cancel", s.handleCancel).Methods("POST")

	s.router.HandleFunc("/api/graphs", s.handleGraphs).Methods("GET")
	s.router.HandleFunc("/api/graphs/{graph}/changes", s.handleChanges).Methods("GET")
	s.router.HandleFunc("/api/graphs/{graph}/changes/{index:[0-9]+}/{state:remote|local|base}", s.handleResolve).Methods("POST")
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		logging.ErrorContext(r.Context(), "subscribe failed", "topic", topic, "error", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client went away", "topic", topic, "error", err)
				return
			}
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// withSession runs fn under the server lock, failing with 503 before a
// session is attached.
func (s *Server) withSession(w http.ResponseWriter, fn func(*merge.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no merge session"))
		return
	}
	fn(s.session)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, func(session *merge.Session) {
		writeJSON(w, http.StatusOK, SessionView{Status: session.Status(), Stale: s.stale})
	})
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, func(session *merge.Session) {
		graphs := session.Status().Graphs
		if graphs == nil {
			graphs = []merge.GraphStatus{}
		}
		writeJSON(w, http.StatusOK, graphs)
	})
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	graph := mux.Vars(r)["graph"]
	s.withSession(w, func(session *merge.Session) {
		t, err := session.Transaction(graph)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		views := make([]ChangeView, 0, len(t.Changes()))
		for i, e := range t.Changes() {
			views = append(views, changeView(t, i, e))
		}
		writeJSON(w, http.StatusOK, views)
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	graph := vars["graph"]
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := conflict.ParseMergeState(vars["state"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.withSession(w, func(session *merge.Session) {
		if err := session.Resolve(graph, index, state); err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		t, e, err := session.Change(graph, index)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		logging.InfoContext(r.Context(), "change resolved", "graph", graph, "index", index, "state", state)
		writeJSON(w, http.StatusOK, changeView(t, index, e))
	})
}

func (s *Server) handleAutoMerge(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("policy")
	if name == "" {
		name = merge.PolicyBase.String()
	}
	policy, err := merge.ParsePolicy(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.withSession(w, func(session *merge.Session) {
		res, err := session.AutoMerge(policy)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, func(session *merge.Session) {
		doc, err := session.Finish()
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		if s.onFinish != nil {
			if err := s.onFinish(doc); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, session.Status())
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, func(session *merge.Session) {
		if err := session.Cancel(); err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.Status())
	})
}

func changeView(t *merge.Transaction, index int, e *conflict.Entry) ChangeView {
	v := ChangeView{
		Index:    index,
		Label:    e.Label,
		Color:    e.Color,
		Kind:     e.Kind(),
		Conflict: e.Conflict,
		State:    e.State,
		Available: merge.Availability{
			Remote: t.CanApplyRemote(e),
			Local:  t.CanApplyLocal(e),
			Base:   t.CanRevert(e),
		},
	}
	if e.HasRemote() {
		v.Remote = sideView(e.Remote)
	}
	if e.HasLocal() {
		v.Local = sideView(e.Local)
	}
	return v
}

func sideView(r diff.Result) *SideView {
	return &SideView{Kind: r.Kind, Label: r.Label, Tooltip: r.Tooltip, Color: r.Color}
}

// statusOf maps session errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, merge.ErrNoSuchGraph), errors.Is(err, merge.ErrNoSuchChange):
		return http.StatusNotFound
	case errors.Is(err, merge.ErrCannotApply):
		return http.StatusConflict
	case errors.Is(err, merge.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Start serves on port until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.publisher.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
