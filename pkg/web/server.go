package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/ritzau/forcegraph/pkg/config"
	"github.com/ritzau/forcegraph/pkg/feed"
	"github.com/ritzau/forcegraph/pkg/interaction"
	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/ritzau/forcegraph/pkg/loop"
	"github.com/ritzau/forcegraph/pkg/model"
	"github.com/ritzau/forcegraph/pkg/physics"
	"github.com/ritzau/forcegraph/pkg/pubsub"
	"github.com/ritzau/forcegraph/pkg/render"
)

//go:embed static/*
var staticFiles embed.FS

// Data sources a visualizer can be opened on
const (
	SourceDependencies = "dependencies"
	SourceTrace        = "trace"
	SourceFile         = "file"
	SourceDepFiles     = "depfiles"
	SourceSnapshot     = "snapshot"
	SourcePush         = "push"
)

// maxBody bounds request bodies; snapshots are the largest
const maxBody = 8 << 20

// ErrNoVisualizer is reported when a request needs an open visualizer
var ErrNoVisualizer = errors.New("no visualizer open")

// OpenRequest is the body of POST /api/visualizer
type OpenRequest struct {
	Source   string          `json:"source"`
	Code     string          `json:"code,omitempty"`
	Path     string          `json:"path,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// VisualizerStatus describes the open visualizer
type VisualizerStatus struct {
	Instance string `json:"instance"`
	Source   string `json:"source"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// PointerResult is the response to a click
type PointerResult struct {
	Hit    bool   `json:"hit"`
	NodeID string `json:"nodeId,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// Options configure a Server
type Options struct {
	Config *config.Config

	// NewScheduler paces each visualizer. Defaults to a ticker at the
	// configured frame rate.
	NewScheduler func() loop.Scheduler
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	cfg       *config.Config
	newSched  func() loop.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	vis    *loop.Loop
	sched  loop.Scheduler
	source string
	size   model.Size
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{
			Width: 800, Height: 600, FPS: 60, PublishEvery: 1,
			Physics: physics.DefaultParams(), Eades: physics.DefaultEadesParams(),
		}
	}
	newSched := opts.NewScheduler
	if newSched == nil {
		fps := cfg.FPS
		newSched = func() loop.Scheduler { return loop.NewTicker(fps) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:    mux.NewRouter(),
		publisher: pubsub.NewTopicPublisher(pubsub.VisualizerTopics),
		cfg:       cfg,
		newSched:  newSched,
		ctx:       ctx,
		cancel:    cancel,
		size:      model.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)},
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

// Publisher returns the event publisher
func (s *Server) Publisher() *pubsub.SSEPublisher {
	return s.publisher
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/visualizer", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/visualizer", s.handleOpen).Methods("POST")
	s.router.HandleFunc("/api/visualizer", s.handleClose).Methods("DELETE")

	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/graph.svg", s.handleSVG).Methods("GET")
	s.router.HandleFunc("/api/graph.png", s.handlePNG).Methods("GET")
	s.router.HandleFunc("/api/snapshot", s.handleSnapshot).Methods("POST")
	s.router.HandleFunc("/api/pointer", s.handlePointer).Methods("POST")
	s.router.HandleFunc("/api/resize", s.handleResize).Methods("POST")

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("static assets missing", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

// Open closes any open visualizer and opens a new one on req's source
func (s *Server) Open(req OpenRequest) (VisualizerStatus, error) {
	f, err := s.feedFor(req)
	if err != nil {
		return VisualizerStatus{}, err
	}
	sim, err := physics.New(s.cfg.Simulator, s.cfg.Eades)
	if err != nil {
		return VisualizerStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()

	var vis *loop.Loop
	controller := interaction.NewController(interaction.Options{
		Tolerance: s.cfg.HitTolerance,
		Navigable: s.cfg.Navigable,
		Navigate: func(ev interaction.NavigationEvent) {
			s.publish(pubsub.TopicNavigation, "navigate", pubsub.Navigation{
				Instance: vis.ID(), NodeID: ev.NodeID, Kind: ev.Kind,
			})
		},
	})

	source := req.Source
	sched := s.newSched()
	vis, err = loop.New(loop.Options{
		Size:            s.size,
		Params:          s.cfg.Physics,
		Simulator:       sim,
		Controller:      controller,
		Scheduler:       sched,
		HighlightFrames: s.cfg.HighlightFrames,
		PublishEvery:    s.cfg.PublishEvery,
		Hooks:           s.hooks(source, &vis),
	})
	if err != nil {
		stopScheduler(sched)
		return VisualizerStatus{}, err
	}

	if err := vis.Open(s.ctx, f); err != nil {
		stopScheduler(sched)
		return VisualizerStatus{}, err
	}

	s.vis, s.sched, s.source = vis, sched, source
	logging.Info("visualizer opened", "instance", vis.ID(), "source", source)
	return statusOf(vis, source), nil
}

// Close closes the open visualizer
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vis == nil {
		return ErrNoVisualizer
	}
	s.closeLocked()
	return nil
}

// Shutdown closes the visualizer and the publisher
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
	s.cancel()
	_ = s.publisher.Close()
}

func (s *Server) closeLocked() {
	if s.vis == nil {
		return
	}
	s.vis.Close()
	stopScheduler(s.sched)
	s.vis, s.sched, s.source = nil, nil, ""
}

func (s *Server) current() (*loop.Loop, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vis, s.source
}

func stopScheduler(sched loop.Scheduler) {
	if t, ok := sched.(interface{ Stop() }); ok {
		t.Stop()
	}
}

// hooks publishes loop activity. vis is read lazily since the hooks are
// built before the loop exists.
func (s *Server) hooks(source string, vis **loop.Loop) loop.Hooks {
	return loop.Hooks{
		OnFrame: func(f loop.Frame) {
			s.publish(pubsub.TopicLayout, "frame", f)
		},
		OnState: func(st loop.State) {
			s.publish(pubsub.TopicStatus, st.String(), pubsub.Status{
				Instance: (*vis).ID(), State: st.String(), Source: source,
			})
		},
		OnFeedError: func(err error) {
			s.publish(pubsub.TopicStatus, "feed_error", pubsub.Status{
				Instance: (*vis).ID(), State: (*vis).State().String(), Source: source, Error: err.Error(),
			})
		},
		OnMerge: func(c model.ChangeSet) {
			logging.Trace("merged snapshot", "added", len(c.Added), "removed", len(c.Removed))
		},
	}
}

func (s *Server) publish(topic, eventType string, data any) {
	if err := s.publisher.Publish(topic, eventType, data); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		logging.Warn("publish failed", "topic", topic, "error", err)
	}
}

// feedFor builds the data feed for an open request
func (s *Server) feedFor(req OpenRequest) (feed.Feed, error) {
	fc := s.cfg.Feed
	switch req.Source {
	case SourceDependencies:
		return feed.HTTPSnapshot{URL: fc.DependenciesURL, Interval: fc.PollInterval}, nil
	case SourceTrace:
		if req.Code == "" {
			return nil, errors.New("trace needs code")
		}
		return feed.Trace{URL: fc.TraceURL, Code: req.Code}, nil
	case SourceFile:
		path := req.Path
		if path == "" {
			path = fc.File
		}
		if path == "" {
			return nil, errors.New("file source needs a path")
		}
		return feed.File{Path: path}, nil
	case SourceDepFiles:
		return feed.DepFiles{Root: fc.Root, Watch: fc.Watch}, nil
	case SourceSnapshot:
		if len(req.Snapshot) == 0 {
			return nil, errors.New("snapshot source needs a snapshot")
		}
		snap, err := feed.ParseSnapshot(req.Snapshot)
		if err != nil {
			return nil, err
		}
		return feed.Static(snap), nil
	case SourcePush:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown source %q", req.Source)
}

func statusOf(vis *loop.Loop, source string) VisualizerStatus {
	st := VisualizerStatus{Instance: vis.ID(), Source: source, State: vis.State().String()}
	if err := vis.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !s.publisher.HasTopic(topic) {
		http.Error(w, fmt.Sprintf("unknown topic %q", topic), http.StatusNotFound)
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vis, source := s.current()
	if vis == nil {
		writeError(w, http.StatusNotFound, ErrNoVisualizer)
		return
	}
	writeJSON(w, http.StatusOK, statusOf(vis, source))
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	st, err := s.Open(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.Close(); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	vis, _ := s.current()
	if vis == nil {
		writeError(w, http.StatusNotFound, ErrNoVisualizer)
		return
	}
	writeJSON(w, http.StatusOK, vis.Frame())
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	vis, _ := s.current()
	if vis == nil {
		writeError(w, http.StatusNotFound, ErrNoVisualizer)
		return
	}

	surface := render.NewSVG(vis.Size())
	if err := vis.Render(surface); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(surface.Bytes())
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	vis, _ := s.current()
	if vis == nil {
		writeError(w, http.StatusNotFound, ErrNoVisualizer)
		return
	}

	surface := render.NewRaster(vis.Size())
	if err := vis.Render(surface); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := surface.EncodePNG(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	vis, _ := s.current()
	if vis == nil {
		writeError(w, http.StatusNotFound, ErrNoVisualizer)
		return
	}

	snap, err := feed.DecodeSnapshot(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vis.Submit(snap)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var p interaction.Point
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	vis, _ := s.current()
	if vis == nil {
		writeError(w, http.StatusNotFound, ErrNoVisualizer)
		return
	}

	ev, ok := vis.Click(p)
	res := PointerResult{Hit: ok, NodeID: ev.NodeID, Kind: ev.Kind}

	// The dependency view is dismissed once the user picks a file
	if ok && s.cfg.CloseOnNavigate {
		s.mu.Lock()
		if s.vis == vis {
			s.closeLocked()
			res.Closed = true
		}
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var size model.Size
	if err := decodeBody(w, r, &size); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if size.Width < 1 || size.Height < 1 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("surface must be at least 1x1, got %vx%v", size.Width, size.Height))
		return
	}

	s.mu.Lock()
	s.size = size
	vis := s.vis
	s.mu.Unlock()

	if vis != nil {
		vis.Resize(size)
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Serve listens on addr until ctx ends, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	// SSE streams only end when their subscriptions close
	s.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	logging.Info("web server stopped")
	return nil
}
