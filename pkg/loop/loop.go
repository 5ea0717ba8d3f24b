// Package loop drives a visualizer: it merges incoming snapshots, ticks the
// simulator and draws every frame from Open until Close.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ritzau/forcegraph/pkg/feed"
	"github.com/ritzau/forcegraph/pkg/interaction"
	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/ritzau/forcegraph/pkg/model"
	"github.com/ritzau/forcegraph/pkg/physics"
	"github.com/ritzau/forcegraph/pkg/render"
)

// ErrNotIdle is returned when opening a loop twice
var ErrNotIdle = errors.New("visualizer already opened")

// Hooks are host callbacks. They run outside the loop lock and are dropped
// on Close.
type Hooks struct {
	OnFrame     func(Frame)
	OnFeedError func(error)
	OnMerge     func(model.ChangeSet)
	OnState     func(State)
}

// Options configure a Loop
type Options struct {
	Size       model.Size
	Params     physics.Params
	Simulator  physics.Simulator
	Renderer   *render.Renderer
	Controller *interaction.Controller
	Scheduler  Scheduler

	// Surface, when set, is redrawn every running frame
	Surface render.Surface

	HighlightFrames int
	PublishEvery    int
	Hooks           Hooks
	Rand            *rand.Rand
}

// Loop is one visualizer instance. Stopped is terminal; open a new Loop to
// show the view again.
type Loop struct {
	id  string
	log *slog.Logger

	sched      Scheduler
	sim        physics.Simulator
	params     physics.Params
	renderer   *render.Renderer
	controller *interaction.Controller
	surface    render.Surface
	highlight  int
	every      uint64

	// mu guards the model and everything the frame callback touches
	mu          sync.RWMutex
	graph       *model.Graph
	size        model.Size
	state       State
	seq         uint64
	lastErr     error
	hooks       Hooks
	cancelFrame func()
	cancelFeed  context.CancelFunc

	pendingMu sync.Mutex
	pending   *model.Snapshot
	skipped   []model.Snapshot

	active   atomic.Bool
	feedDone chan struct{}
}

// New validates opts and creates an idle loop
func New(opts Options) (*Loop, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid physics params: %w", err)
	}
	if opts.Scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if opts.Simulator == nil {
		opts.Simulator = physics.NewIntegrator()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer(render.DefaultPalette())
	}
	if opts.Controller == nil {
		opts.Controller = interaction.NewController(interaction.Options{})
	}
	if opts.PublishEvery <= 0 {
		opts.PublishEvery = 1
	}

	graphOpts := []model.Option{model.WithBounds(opts.Size)}
	if opts.Rand != nil {
		graphOpts = append(graphOpts, model.WithRand(opts.Rand))
	}

	id := uuid.NewString()
	return &Loop{
		id:         id,
		log:        logging.New("loop").With("instance", id),
		sched:      opts.Scheduler,
		sim:        opts.Simulator,
		params:     opts.Params,
		renderer:   opts.Renderer,
		controller: opts.Controller,
		surface:    opts.Surface,
		highlight:  opts.HighlightFrames,
		every:      uint64(opts.PublishEvery),
		graph:      model.NewGraph(graphOpts...),
		size:       opts.Size,
		state:      Idle,
		hooks:      opts.Hooks,
		feedDone:   make(chan struct{}),
	}, nil
}

// ID returns the instance id
func (l *Loop) ID() string {
	return l.id
}

// Open moves Idle to Loading, starts f and schedules the first frame.
// f may be nil when snapshots are submitted directly.
func (l *Loop) Open(ctx context.Context, f feed.Feed) error {
	l.mu.Lock()
	if l.state != Idle {
		l.mu.Unlock()
		return ErrNotIdle
	}
	l.state = Loading
	l.active.Store(true)

	feedCtx, cancel := context.WithCancel(ctx)
	l.cancelFeed = cancel
	l.cancelFrame = l.sched.Schedule(l.frame)
	onState := l.hooks.OnState
	l.mu.Unlock()

	l.log.Info("visualizer opened")
	if onState != nil {
		onState(Loading)
	}

	if f == nil {
		close(l.feedDone)
		return nil
	}

	go func() {
		defer close(l.feedDone)
		err := f.Run(feedCtx, l)
		if err != nil && feedCtx.Err() == nil {
			// Feeds usually report through Fail before returning the same error
			if l.Err() != err {
				l.Fail(err)
			}
			return
		}
		l.log.Debug("feed finished")
	}()
	return nil
}

// maxSkipped bounds the superseded snapshots kept for highlighting
const maxSkipped = 16

// Submit queues a snapshot for the next frame. Only the latest pending
// snapshot is merged; snapshots it supersedes within the same frame still
// contribute their added and updated ids to the highlight. Submits after
// Close are dropped.
func (l *Loop) Submit(s model.Snapshot) {
	if !l.active.Load() {
		l.log.Debug("dropping snapshot after close", "nodes", len(s.Nodes))
		return
	}
	l.pendingMu.Lock()
	if l.pending != nil {
		if len(l.skipped) == maxSkipped {
			l.skipped = l.skipped[1:]
		}
		l.skipped = append(l.skipped, *l.pending)
	}
	l.pending = &s
	l.pendingMu.Unlock()
}

// Fail records a feed failure. The current graph stays in place.
func (l *Loop) Fail(err error) {
	if !l.active.Load() {
		return
	}
	l.mu.Lock()
	l.lastErr = err
	onErr := l.hooks.OnFeedError
	l.mu.Unlock()

	l.log.Warn("feed failed", "error", err)
	if onErr != nil {
		onErr(err)
	}
}

// Err returns the last feed failure
func (l *Loop) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// State returns the lifecycle state
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Size returns the current surface size
func (l *Loop) Size() model.Size {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Done is closed once the feed goroutine has returned
func (l *Loop) Done() <-chan struct{} {
	return l.feedDone
}

// Resize changes the surface size without restarting the layout
func (l *Loop) Resize(size model.Size) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Stopped {
		return
	}
	l.size = size
	l.graph.SetBounds(size)
	if r, ok := l.surface.(render.Resizer); ok {
		r.Resize(size)
	}
	l.log.Debug("resized", "width", size.Width, "height", size.Height)
}

// Click hit-tests p against the latest positions and emits navigation
func (l *Loop) Click(p interaction.Point) (interaction.NavigationEvent, bool) {
	l.mu.RLock()
	ev, ok := l.controller.Target(p, l.graph)
	l.mu.RUnlock()

	if !ok || !l.active.Load() {
		return interaction.NavigationEvent{}, false
	}
	l.log.Info("navigate", "node", ev.NodeID)
	l.controller.Emit(ev)
	return ev, true
}

// Render draws the current graph onto s
func (l *Loop) Render(s render.Surface) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.renderer.Draw(l.graph, s)
}

// Frame returns a copy of the current layout
func (l *Loop) Frame() Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.capture()
}

// Close stops the loop for good
func (l *Loop) Close() {
	l.mu.Lock()
	if l.state == Stopped {
		l.mu.Unlock()
		return
	}
	l.active.Store(false)
	if l.cancelFrame != nil {
		l.cancelFrame()
		l.cancelFrame = nil
	}
	if l.cancelFeed != nil {
		l.cancelFeed()
	}
	wasIdle := l.state == Idle
	l.state = Stopped
	onState := l.hooks.OnState
	l.hooks = Hooks{}
	l.mu.Unlock()

	l.pendingMu.Lock()
	l.pending = nil
	l.skipped = nil
	l.pendingMu.Unlock()

	if wasIdle {
		close(l.feedDone)
	}
	l.log.Info("visualizer closed")
	if onState != nil {
		onState(Stopped)
	}
}

// frame is the scheduled per-frame callback
func (l *Loop) frame() {
	if !l.active.Load() {
		return
	}

	l.mu.Lock()
	if !l.active.Load() {
		l.mu.Unlock()
		return
	}

	change, merged := l.mergePending()
	entered := false
	if merged && l.state == Loading {
		l.state = Running
		entered = true
	}

	if l.state == Running {
		l.sim.Tick(l.graph, l.size, l.params)
		if l.surface != nil {
			if err := l.renderer.Draw(l.graph, l.surface); err != nil {
				l.log.Warn("draw failed", "error", err)
			}
		}
		l.renderer.Step()
	}

	l.seq++
	hooks := l.hooks
	var frame *Frame
	if hooks.OnFrame != nil && l.state == Running && l.seq%l.every == 0 {
		f := l.capture()
		frame = &f
	}
	l.cancelFrame = l.sched.Schedule(l.frame)
	l.mu.Unlock()

	if entered {
		l.log.Info("visualizer running", "nodes", len(change.Added))
		if hooks.OnState != nil {
			hooks.OnState(Running)
		}
	}
	if merged && hooks.OnMerge != nil {
		hooks.OnMerge(change)
	}
	if frame != nil && l.active.Load() {
		hooks.OnFrame(*frame)
	}
}

// mergePending applies the latest submitted snapshot. Called with mu held.
func (l *Loop) mergePending() (model.ChangeSet, bool) {
	l.pendingMu.Lock()
	s, skipped := l.pending, l.skipped
	l.pending, l.skipped = nil, nil
	l.pendingMu.Unlock()

	if s == nil {
		return model.ChangeSet{}, false
	}

	var touched []string
	for _, prev := range skipped {
		touched = append(touched, l.graph.Touches(prev)...)
	}

	change := l.graph.Merge(*s)
	if change.Reseed() {
		l.sim.Reseed()
	}
	l.renderer.Highlight(append(touched, change.Touched()...), l.highlight)

	l.log.Debug("snapshot merged",
		"added", len(change.Added),
		"updated", len(change.Updated),
		"removed", len(change.Removed),
		"edgesChanged", change.EdgesChanged,
	)
	return change, true
}
