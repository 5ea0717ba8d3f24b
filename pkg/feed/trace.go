package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/ritzau/forcegraph/pkg/model"
)

// StatusDone marks the end of a trace stream
const StatusDone = "done"

// MutableKinds are the value types whose variables are linked when they
// alias the same object.
var MutableKinds = []string{"list", "dict", "set", "object"}

// TraceVariable is one local variable in a trace step
type TraceVariable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
	ID    string `json:"id"`
}

// TraceStep is one message from the tracer backend
type TraceStep struct {
	Line      int             `json:"line"`
	Variables []TraceVariable `json:"variables"`
	Error     string          `json:"error,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// Snapshot converts the step's variables to a full graph replacement
func (s TraceStep) Snapshot() model.Snapshot {
	specs := make([]model.NodeSpec, 0, len(s.Variables))
	for _, v := range s.Variables {
		specs = append(specs, model.NodeSpec{
			ID:          v.Name,
			Kind:        v.Type,
			Label:       v.Name,
			Value:       v.Value,
			IdentityKey: v.ID,
		})
	}
	return model.Snapshot{Nodes: specs, Rule: model.IdentityEdges{Kinds: MutableKinds}}
}

// Trace streams variable snapshots from a tracer over a websocket.
// The code is sent once after connecting; every step that follows replaces
// the graph.
type Trace struct {
	URL    string
	Code   string
	Dialer *websocket.Dialer
}

// Run connects and forwards steps until the trace is done, fails, or ctx ends
func (t Trace) Run(ctx context.Context, sink Sink) error {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		err = fmt.Errorf("connecting to tracer %s: %w", t.URL, err)
		sink.Fail(err)
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	if err := conn.WriteJSON(map[string]string{"code": t.Code}); err != nil {
		err = fmt.Errorf("sending code to tracer: %w", err)
		sink.Fail(err)
		return err
	}

	steps := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("tracer closed the stream", "steps", steps)
				return nil
			}
			err = fmt.Errorf("reading trace step: %w", err)
			sink.Fail(err)
			return err
		}

		var step TraceStep
		if err := json.Unmarshal(data, &step); err != nil {
			// A single garbled frame does not end the trace
			logging.Warn("ignoring malformed trace step", "error", err)
			continue
		}

		if step.Error != "" {
			err := fmt.Errorf("%w at line %d: %s", ErrTraceFailed, step.Line, step.Error)
			sink.Fail(err)
			closeNormally(conn)
			return err
		}
		if step.Status == StatusDone {
			logging.Info("trace finished", "steps", steps)
			closeNormally(conn)
			return nil
		}
		if step.Status != "" && len(step.Variables) == 0 {
			logging.Debug("tracer status", "status", step.Status)
			continue
		}

		steps++
		logging.Trace("trace step", "line", step.Line, "variables", len(step.Variables))
		sink.Submit(step.Snapshot())
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logging.Debug("failed to send close frame", "error", err)
	}
}
