package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type counter struct {
	steps []string
}

func step(name string) NodeFunc[*counter] {
	return func(ctx context.Context, c *counter) (*counter, error) {
		c.steps = append(c.steps, name)
		return c, nil
	}
}

func TestNewGraph(t *testing.T) {
	g := NewGraph[*counter]()
	if g == nil {
		t.Errorf("NewGraph returned nil")
	}
}

func TestAddNode(t *testing.T) {
	g := NewGraph[*counter]()

	g.AddNode(&Node[*counter]{
		Name:    "test_node",
		Type:    NodeTypeAgent,
		Execute: step("test_node"),
	})

	retrieved, err := g.GetNode("test_node")
	if err != nil {
		t.Errorf("failed to retrieve added node: %v", err)
	}
	if retrieved.Name != "test_node" {
		t.Errorf("retrieved node name mismatch")
	}
}

func TestAddNodeEmptyName(t *testing.T) {
	g := NewGraph[*counter]()

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected function to panic, but it did not")
		} else if r != "node name cannot be empty" {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()

	g.AddNode(&Node[*counter]{Name: "", Type: NodeTypeAgent, Execute: step("")})
}

func TestAddNodeDuplicate(t *testing.T) {
	g := NewGraph[*counter]()
	g.AddNode(&Node[*counter]{Name: "dup_node", Type: NodeTypeAgent, Execute: step("dup")})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected function to panic, but it did not")
		} else if r != "node dup_node already exists" {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	g.AddNode(&Node[*counter]{Name: "dup_node", Type: NodeTypeAgent, Execute: step("dup")})
}

func TestConditionNodeRequiresCondition(t *testing.T) {
	g := NewGraph[*counter]()

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected function to panic, but it did not")
		}
	}()
	g.AddNode(&Node[*counter]{Name: "cond", Type: NodeTypeCondition})
}

func TestExecuteLinear(t *testing.T) {
	g := NewBuilder[*counter]().
		AddNode("start", NodeTypeStart, step("start")).
		AddNode("middle", NodeTypeAgent, step("middle")).
		AddNode("end", NodeTypeEnd, step("end")).
		AddEdge("start", "middle").
		AddEdge("middle", "end").
		Build()

	out, err := g.Execute(context.Background(), &counter{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got := strings.Join(out.steps, ",")
	if got != "start,middle,end" {
		t.Errorf("unexpected execution order: %s", got)
	}
}

func TestExecuteCondition(t *testing.T) {
	route := func(ctx context.Context, c *counter) (string, error) {
		return "right", nil
	}

	g := NewBuilder[*counter]().
		AddNode("start", NodeTypeStart, step("start")).
		AddConditionNode("branch", route, map[string]string{
			"left":  "left",
			"right": "right",
		}).
		AddNode("left", NodeTypeAgent, step("left")).
		AddNode("right", NodeTypeAgent, step("right")).
		AddNode("end", NodeTypeEnd, step("end")).
		AddEdge("start", "branch").
		AddEdge("left", "end").
		AddEdge("right", "end").
		Build()

	out, err := g.Execute(context.Background(), &counter{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got := strings.Join(out.steps, ",")
	if got != "start,right,end" {
		t.Errorf("unexpected execution path: %s", got)
	}
}

func TestExecuteConditionNoEdge(t *testing.T) {
	route := func(ctx context.Context, c *counter) (string, error) {
		return "missing", nil
	}

	g := NewBuilder[*counter]().
		AddNode("start", NodeTypeStart, step("start")).
		AddConditionNode("branch", route, map[string]string{"known": "end"}).
		AddNode("end", NodeTypeEnd, step("end")).
		AddEdge("start", "branch").
		Build()

	if _, err := g.Execute(context.Background(), &counter{}); err == nil {
		t.Errorf("expected error for unmapped condition result")
	}
}

func TestExecuteConditionError(t *testing.T) {
	boom := errors.New("boom")
	route := func(ctx context.Context, c *counter) (string, error) {
		return "", boom
	}

	g := NewBuilder[*counter]().
		AddNode("start", NodeTypeStart, step("start")).
		AddConditionNode("branch", route, map[string]string{"x": "end"}).
		AddNode("end", NodeTypeEnd, step("end")).
		AddEdge("start", "branch").
		Build()

	_, err := g.Execute(context.Background(), &counter{})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped condition error, got %v", err)
	}
}

func TestExecuteNoStart(t *testing.T) {
	g := NewGraph[*counter]()
	if _, err := g.Execute(context.Background(), &counter{}); err == nil {
		t.Errorf("expected error when start node not set")
	}
}

func TestExecuteLoopDetection(t *testing.T) {
	g := NewBuilder[*counter]().
		AddNode("start", NodeTypeStart, step("start")).
		AddNode("loop", NodeTypeAgent, step("loop")).
		AddEdge("start", "loop").
		AddEdge("loop", "loop").
		SetMaxVisits(3).
		Build()

	_, err := g.Execute(context.Background(), &counter{})
	if err == nil || !strings.Contains(err.Error(), "infinite loop") {
		t.Errorf("expected loop detection error, got %v", err)
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewBuilder[*counter]().
		AddNode("start", NodeTypeStart, step("start")).
		AddNode("end", NodeTypeEnd, step("end")).
		AddEdge("start", "end").
		Build()

	if _, err := g.Execute(ctx, &counter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
