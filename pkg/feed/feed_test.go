package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ritzau/forcegraph/pkg/model"
)

// recordingSink collects everything a feed reports
type recordingSink struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
	errs      []error
	notify    chan struct{}
}

func newSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 100)}
}

func (s *recordingSink) Submit(snap model.Snapshot) {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *recordingSink) Fail(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots), len(s.errs)
}

func (s *recordingSink) last() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[len(s.snapshots)-1]
}

// waitFor blocks until cond holds or the timeout passes
func (s *recordingSink) waitFor(t *testing.T, cond func(snaps, errs int) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond(s.counts()) {
			return
		}
		select {
		case <-s.notify:
		case <-deadline:
			snaps, errs := s.counts()
			t.Fatalf("timed out: %d snapshots, %d errors", snaps, errs)
		}
	}
}

const depsDoc = `{
  "nodes": [
    {"id": "src/engine.py", "group": 1, "radius": 5},
    {"id": "numpy", "group": 2, "radius": 3}
  ],
  "links": [{"source": "src/engine.py", "target": "numpy", "value": 1}]
}`

func TestDecodeSnapshotKinds(t *testing.T) {
	snap, err := DecodeSnapshot(strings.NewReader(`{
	  "nodes": [
	    {"id": "a", "kind": "int", "value": 42},
	    {"id": "b", "kind": "str", "label": "name", "value": "hi"}
	  ],
	  "edges": [{"source": "a", "target": "b"}]
	}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}

	if len(snap.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(snap.Nodes))
	}
	if snap.Nodes[0].Value != "42" || snap.Nodes[1].Value != "hi" {
		t.Errorf("Unexpected values %q %q", snap.Nodes[0].Value, snap.Nodes[1].Value)
	}
	if snap.Nodes[1].Label != "name" {
		t.Errorf("Expected label to pass through, got %q", snap.Nodes[1].Label)
	}

	edges := snap.Rule.Edges(snap.Nodes)
	if len(edges) != 1 || edges[0].Source != "a" || edges[0].Target != "b" {
		t.Errorf("Expected edge a-b, got %v", edges)
	}
}

func TestDecodeSnapshotGroups(t *testing.T) {
	snap, err := ParseSnapshot([]byte(depsDoc))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}

	if snap.Nodes[0].Kind != "file" || snap.Nodes[1].Kind != "external" {
		t.Errorf("Expected groups mapped to kinds, got %q %q", snap.Nodes[0].Kind, snap.Nodes[1].Kind)
	}
	if snap.Nodes[0].Radius != 5 {
		t.Errorf("Expected radius 5, got %v", snap.Nodes[0].Radius)
	}
	if edges := snap.Rule.Edges(snap.Nodes); len(edges) != 1 {
		t.Errorf("Expected links used as edges, got %v", edges)
	}
}

func TestDecodeSnapshotDerivesEdges(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"nodes": [
	  {"id": "a", "identityKey": "m1"},
	  {"id": "b", "identityKey": "m1"},
	  {"id": "c", "identityKey": "m2"}
	]}`))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}
	if _, ok := snap.Rule.(model.IdentityEdges); !ok {
		t.Fatalf("Expected identity rule, got %T", snap.Rule)
	}
	if edges := snap.Rule.Edges(snap.Nodes); len(edges) != 1 {
		t.Errorf("Expected one derived edge, got %v", edges)
	}
}

func TestDecodeSnapshotEmptyEdgesAreExplicit(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"nodes": [{"id": "a", "identityKey": "m"}, {"id": "b", "identityKey": "m"}], "edges": []}`))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}
	if edges := snap.Rule.Edges(snap.Nodes); len(edges) != 0 {
		t.Errorf("Expected an explicit empty edge list to win, got %v", edges)
	}
}

func TestDecodeSnapshotMalformed(t *testing.T) {
	if _, err := ParseSnapshot([]byte(`{"nodes": [`)); err == nil {
		t.Error("Expected error for truncated document")
	}
}

func TestHTTPSnapshotOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(depsDoc))
	}))
	defer srv.Close()

	sink := newSink()
	if err := (HTTPSnapshot{URL: srv.URL}).Run(context.Background(), sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snaps, errs := sink.counts()
	if snaps != 1 || errs != 0 {
		t.Fatalf("Expected one snapshot and no errors, got %d/%d", snaps, errs)
	}
	if len(sink.last().Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(sink.last().Nodes))
	}
}

func TestHTTPSnapshotKeepsPollingAfterFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(depsDoc))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sink := newSink()
	done := make(chan error, 1)
	go func() {
		done <- HTTPSnapshot{URL: srv.URL, Interval: 10 * time.Millisecond}.Run(ctx, sink)
	}()

	sink.waitFor(t, func(snaps, errs int) bool { return snaps >= 1 && errs >= 1 })
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Expected clean stop on cancel, got %v", err)
	}
}

func TestHTTPSnapshotFailureWithoutInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	sink := newSink()
	if err := (HTTPSnapshot{URL: srv.URL}).Run(context.Background(), sink); err == nil {
		t.Error("Expected error for 404")
	}
	if _, errs := sink.counts(); errs != 1 {
		t.Errorf("Expected failure reported once, got %d", errs)
	}
}

// tracerServer replays steps to a client after receiving its code
func tracerServer(t *testing.T, gotCode chan<- string, steps ...TraceStep) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		var req map[string]string
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("reading code: %v", err)
			return
		}
		gotCode <- req["code"]

		for _, step := range steps {
			if err := conn.WriteJSON(step); err != nil {
				return
			}
		}
		// Wait for the client to hang up
		_, _, _ = conn.ReadMessage()
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTraceStreamsSteps(t *testing.T) {
	gotCode := make(chan string, 1)
	srv := tracerServer(t, gotCode,
		TraceStep{Line: 1, Variables: []TraceVariable{{Name: "a", Type: "list", Value: "[1]", ID: "100"}}},
		TraceStep{Line: 2, Variables: []TraceVariable{
			{Name: "a", Type: "list", Value: "[1]", ID: "100"},
			{Name: "b", Type: "list", Value: "[1]", ID: "100"},
			{Name: "n", Type: "int", Value: "1", ID: "7"},
			{Name: "m", Type: "int", Value: "1", ID: "7"},
		}},
		TraceStep{Status: StatusDone},
	)
	defer srv.Close()

	sink := newSink()
	err := Trace{URL: wsURL(srv), Code: "a = [1]\nb = a"}.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if code := <-gotCode; code != "a = [1]\nb = a" {
		t.Errorf("Expected code sent to tracer, got %q", code)
	}

	snaps, errs := sink.counts()
	if snaps != 2 || errs != 0 {
		t.Fatalf("Expected 2 snapshots and no errors, got %d/%d", snaps, errs)
	}

	last := sink.last()
	if last.Nodes[1].IdentityKey != "100" || last.Nodes[1].Kind != "list" {
		t.Errorf("Unexpected node %+v", last.Nodes[1])
	}
	// Aliased lists are linked, aliased ints are not
	edges := last.Rule.Edges(last.Nodes)
	if len(edges) != 1 || edges[0].Source != "a" || edges[0].Target != "b" {
		t.Errorf("Expected only a-b linked, got %v", edges)
	}
}

func TestTraceErrorStep(t *testing.T) {
	gotCode := make(chan string, 1)
	srv := tracerServer(t, gotCode, TraceStep{Line: 3, Error: "division by zero"})
	defer srv.Close()

	sink := newSink()
	err := Trace{URL: wsURL(srv), Code: "1/0"}.Run(context.Background(), sink)
	if !errors.Is(err, ErrTraceFailed) {
		t.Fatalf("Expected ErrTraceFailed, got %v", err)
	}
	if _, errs := sink.counts(); errs != 1 {
		t.Errorf("Expected failure reported to sink, got %d", errs)
	}
}

func TestTraceDialFailure(t *testing.T) {
	sink := newSink()
	if err := (Trace{URL: "ws://127.0.0.1:1/none"}).Run(context.Background(), sink); err == nil {
		t.Fatal("Expected dial error")
	}
	if _, errs := sink.counts(); errs != 1 {
		t.Errorf("Expected failure reported to sink, got %d", errs)
	}
}

func TestTraceStopsOnCancel(t *testing.T) {
	gotCode := make(chan string, 1)
	srv := tracerServer(t, gotCode, TraceStep{Line: 1, Variables: []TraceVariable{{Name: "x", Type: "int", Value: "1", ID: "1"}}})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sink := newSink()
	done := make(chan error, 1)
	go func() { done <- Trace{URL: wsURL(srv), Code: "x = 1"}.Run(ctx, sink) }()

	sink.waitFor(t, func(snaps, _ int) bool { return snaps == 1 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error after cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trace did not stop on cancel")
	}
}

func TestFileReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(`{"nodes": [{"id": "a"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newSink()
	done := make(chan error, 1)
	go func() { done <- File{Path: path, Quiet: 20 * time.Millisecond}.Run(ctx, sink) }()

	sink.waitFor(t, func(snaps, _ int) bool { return snaps == 1 })

	if err := os.WriteFile(path, []byte(`{"nodes": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	sink.waitFor(t, func(_, errs int) bool { return errs >= 1 })

	if err := os.WriteFile(path, []byte(`{"nodes": [{"id": "a"}, {"id": "b"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	sink.waitFor(t, func(snaps, _ int) bool { return snaps >= 2 && len(sink.last().Nodes) == 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("file feed did not stop")
	}
}

func TestDepFilesSnapshot(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "obj")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	d := "obj/engine.o: core/engine.cc core/engine.h external/zlib/zlib.h\n"
	if err := os.WriteFile(filepath.Join(dir, "engine.d"), []byte(d), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := newSink()
	if err := (DepFiles{Root: root}).Run(context.Background(), sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snaps, _ := sink.counts()
	if snaps != 1 {
		t.Fatalf("Expected one snapshot, got %d", snaps)
	}
	snap := sink.last()
	if len(snap.Nodes) != 3 {
		t.Fatalf("Expected 3 nodes, got %+v", snap.Nodes)
	}
	if edges := snap.Rule.Edges(snap.Nodes); len(edges) != 2 {
		t.Errorf("Expected 2 edges, got %v", edges)
	}
}
