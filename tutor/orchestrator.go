package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/tutorgraph/graph"
	"github.com/sweetpotato0/tutorgraph/pkg/logging"
	"github.com/sweetpotato0/tutorgraph/pkg/telemetry"
	"github.com/sweetpotato0/tutorgraph/session"
)

// Health describes the orchestrator's readiness.
type Health struct {
	Status              string `json:"status"`
	GraphAvailable      bool   `json:"graph_available"`
	CheckpointAvailable bool   `json:"checkpoint_available"`
	CheckpointType      string `json:"checkpoint_type,omitempty"`
}

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Orchestrator executes exactly one conversation step per inbound message:
// load-or-create session state, append the user turn, run one routing
// decision, run the selected agent, persist the updated state, and return
// the newest assistant turn.
type Orchestrator struct {
	store    session.Store
	registry *Registry
	graph    *graph.Graph[*State]
	logger   *slog.Logger
	tracer   trace.Tracer

	checkpointType string

	// Per-session serialization: concurrent invocations for the same
	// session would otherwise race on read-modify-write of the record.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	sem chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the logger used by the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxConcurrent bounds the number of simultaneous dispatches.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = make(chan struct{}, n)
		}
	}
}

// WithCheckpointType labels the backing store in health reports.
func WithCheckpointType(name string) Option {
	return func(o *Orchestrator) {
		o.checkpointType = name
	}
}

// New builds an orchestrator over the given store and registry. All four
// agents must be registered before construction.
func New(store session.Store, registry *Registry, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	for _, name := range AgentNames() {
		if !registry.Has(name) {
			return nil, fmt.Errorf("agent %s is not registered", name)
		}
	}

	o := &Orchestrator{
		store:    store,
		registry: registry,
		logger:   logging.WithComponent("orchestrator"),
		tracer:   telemetry.Tracer("tutorgraph/orchestrator"),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.graph = buildGraph(registry)
	return o, nil
}

// buildGraph wires the tutor graph: a router condition at the entry picks one
// agent node, the agent runs once, and the walk ends. Routing is single-hop
// per inbound message: the classifier sets CurrentAgent for the next call,
// it does not chain into the destination agent within the same call.
func buildGraph(registry *Registry) *graph.Graph[*State] {
	passthrough := func(ctx context.Context, state *State) (*State, error) {
		return state, nil
	}

	route := func(ctx context.Context, state *State) (string, error) {
		name := Route(state)
		if !registry.Has(name) {
			return "", fmt.Errorf("%w: %s", ErrUnknownAgent, name)
		}
		return name, nil
	}

	nextMap := make(map[string]string, len(AgentNames()))
	builder := graph.NewBuilder[*State]().
		AddNode("start", graph.NodeTypeStart, passthrough).
		AddNode("end", graph.NodeTypeEnd, passthrough)

	for _, name := range AgentNames() {
		agent := name
		builder.AddNode(agent, graph.NodeTypeAgent, func(ctx context.Context, state *State) (*State, error) {
			return registry.Dispatch(ctx, agent, state)
		})
		builder.AddEdge(agent, "end")
		nextMap[agent] = agent
	}

	builder.AddConditionNode("router", route, nextMap)
	builder.AddEdge("start", "router")

	return builder.Build()
}

// Invoke processes one inbound message. When sessionID is empty a fresh
// opaque identifier is generated. It returns the newest assistant turn's
// content and the effective session identifier.
func (o *Orchestrator) Invoke(ctx context.Context, sessionID, prompt string) (response string, id string, err error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.invoke",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer func() { telemetry.End(span, err) }()

	if o.sem != nil {
		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-ctx.Done():
			return "", sessionID, ctx.Err()
		}
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := o.loadState(ctx, sessionID)
	if err != nil {
		return "", sessionID, err
	}

	state.Append(NewUserTurn(prompt))

	result, err := o.graph.Execute(ctx, state)
	if err != nil {
		o.logger.Error("conversation step failed", "session_id", sessionID, "error", err)
		return "", sessionID, err
	}

	reply := result.LastAssistant()
	if reply == nil {
		o.logger.Error("dispatch produced no assistant turn", "session_id", sessionID)
		return "", sessionID, ErrNoResponse
	}

	if err := o.store.Save(ctx, result.Record(sessionID)); err != nil {
		o.logger.Error("failed to persist session", "session_id", sessionID, "error", err)
		return "", sessionID, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	span.SetAttributes(
		attribute.String("agent.next", result.CurrentAgent),
		attribute.Int("history.turns", len(result.Messages)),
	)
	o.logger.Info("conversation step complete",
		"session_id", sessionID,
		"next_agent", result.CurrentAgent,
		"turns", len(result.Messages))

	return reply.Content, sessionID, nil
}

// Health reports readiness of the graph and the attached session store.
func (o *Orchestrator) Health(ctx context.Context) Health {
	h := Health{
		Status:         StatusHealthy,
		CheckpointType: o.checkpointType,
	}
	h.GraphAvailable = o.graph != nil
	if o.store != nil && o.store.Ping(ctx) == nil {
		h.CheckpointAvailable = true
	}
	if !h.GraphAvailable || !h.CheckpointAvailable {
		h.Status = StatusDegraded
	}
	return h
}

func (o *Orchestrator) loadState(ctx context.Context, sessionID string) (*State, error) {
	record, err := o.store.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return NewState(), nil
	}
	if err != nil {
		o.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return StateFromRecord(record), nil
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}
