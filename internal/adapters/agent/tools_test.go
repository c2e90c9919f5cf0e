package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/triage/internal/adapters/search"
	"github.com/okian/triage/internal/domain/priority"
	"github.com/okian/triage/internal/domain/route"
	"github.com/okian/triage/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type fakeClient struct {
	comments   []string
	priorities []int
	commentErr error
	setErr     error
}

func (f *fakeClient) PostComment(_ context.Context, _, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeClient) SetPriority(_ context.Context, _ string, p int) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.priorities = append(f.priorities, p)
	return nil
}

type fakeProvider struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeProvider) Query(_ context.Context, text string) ([]search.Result, error) {
	f.queries = append(f.queries, text)
	return f.results, f.err
}

func TestExecuteTool(t *testing.T) {
	ctx := context.Background()
	echo := Tool{
		Name: "echo",
		Execute: func(_ context.Context, input map[string]interface{}) (string, error) {
			return input["text"].(string), nil
		},
	}
	byName := toolIndex([]Tool{echo})

	t.Run("map input", func(t *testing.T) {
		out, err := executeTool(ctx, byName, "echo", map[string]interface{}{"text": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "hi", out)
	})

	t.Run("byte slice input", func(t *testing.T) {
		out, err := executeTool(ctx, byName, "echo", []byte(`{"text":"raw"}`))
		require.NoError(t, err)
		assert.Equal(t, "raw", out)
	})

	t.Run("raw message input", func(t *testing.T) {
		out, err := executeTool(ctx, byName, "echo", json.RawMessage(`{"text":"msg"}`))
		require.NoError(t, err)
		assert.Equal(t, "msg", out)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := executeTool(ctx, byName, "nope", map[string]interface{}{})
		assert.ErrorContains(t, err, "unknown tool")
	})

	t.Run("unsupported input type", func(t *testing.T) {
		_, err := executeTool(ctx, byName, "echo", 42)
		assert.ErrorContains(t, err, "invalid tool input format")
	})

	t.Run("invalid json input", func(t *testing.T) {
		_, err := executeTool(ctx, byName, "echo", []byte(`{broken`))
		assert.ErrorContains(t, err, "unmarshal")
	})
}

func TestSearchTool(t *testing.T) {
	ctx := context.Background()

	t.Run("formats results", func(t *testing.T) {
		p := &fakeProvider{results: []search.Result{
			{Title: "Known crash", URL: "https://kb/1", Snippet: "fixed in 2.3"},
		}}
		tool := SearchTool(p)
		assert.Equal(t, "search_knowledge", tool.Name)

		out, err := tool.Execute(ctx, map[string]interface{}{"query": "crash"})
		require.NoError(t, err)
		assert.Contains(t, out, "Known crash")
		assert.Contains(t, out, "https://kb/1")
		assert.Equal(t, []string{"crash"}, p.queries)
	})

	t.Run("empty result set", func(t *testing.T) {
		tool := SearchTool(&fakeProvider{})
		out, err := tool.Execute(ctx, map[string]interface{}{"query": "nothing"})
		require.NoError(t, err)
		assert.Equal(t, "no results", out)
	})

	t.Run("missing query", func(t *testing.T) {
		tool := SearchTool(&fakeProvider{})
		_, err := tool.Execute(ctx, map[string]interface{}{})
		assert.ErrorContains(t, err, "query")
	})

	t.Run("provider failure", func(t *testing.T) {
		tool := SearchTool(&fakeProvider{err: errors.New("down")})
		_, err := tool.Execute(ctx, map[string]interface{}{"query": "q"})
		assert.ErrorContains(t, err, "down")
	})
}

func TestPostCommentTool(t *testing.T) {
	ctx := context.Background()

	t.Run("posts body", func(t *testing.T) {
		client := &fakeClient{}
		tool := PostCommentTool(client, "item-1")
		assert.Equal(t, "post_comment", tool.Name)

		out, err := tool.Execute(ctx, map[string]interface{}{"body": "note"})
		require.NoError(t, err)
		assert.Equal(t, "comment posted", out)
		assert.Equal(t, []string{"note"}, client.comments)
	})

	t.Run("missing body", func(t *testing.T) {
		tool := PostCommentTool(&fakeClient{}, "item-1")
		_, err := tool.Execute(ctx, map[string]interface{}{})
		assert.ErrorContains(t, err, "body")
	})
}

func TestSetInitialPriorityTool(t *testing.T) {
	ctx := context.Background()
	engine := priority.NewEngine()

	t.Run("routed item is assessed through the category matrix", func(t *testing.T) {
		client := &fakeClient{}
		tool := SetInitialPriorityTool(engine, client, route.Route("Bug"), "item-1")
		assert.Equal(t, "set_initial_priority", tool.Name)

		out, err := tool.Execute(ctx, map[string]interface{}{
			"impact": "critical", "urgency": "high", "reason": "login broken for all users",
		})
		require.NoError(t, err)
		assert.Equal(t, "initial priority set to 1", out)
		assert.Equal(t, []int{1}, client.priorities)
	})

	t.Run("unrouted item gets the default level", func(t *testing.T) {
		client := &fakeClient{}
		tool := SetInitialPriorityTool(engine, client, route.Route("question"), "item-2")

		out, err := tool.Execute(ctx, map[string]interface{}{"reason": "no valid label yet"})
		require.NoError(t, err)
		assert.Equal(t, "initial priority set to 3", out)
		assert.Equal(t, []int{priority.DefaultPriority}, client.priorities)
	})

	t.Run("unrouted item still requires a reason", func(t *testing.T) {
		tool := SetInitialPriorityTool(engine, &fakeClient{}, route.Route(""), "item-3")
		_, err := tool.Execute(ctx, map[string]interface{}{})
		assert.ErrorContains(t, err, "reason")
	})

	t.Run("setter failure surfaces", func(t *testing.T) {
		client := &fakeClient{setErr: errors.New("api down")}
		tool := SetInitialPriorityTool(engine, client, route.Route("Feature"), "item-4")
		_, err := tool.Execute(ctx, map[string]interface{}{
			"business_value": "high", "implementation_effort": "small", "reason": "r",
		})
		assert.ErrorContains(t, err, "api down")
	})
}

func TestSetPriorityTool(t *testing.T) {
	ctx := context.Background()
	engine := priority.NewEngine()

	t.Run("scores and persists", func(t *testing.T) {
		client := &fakeClient{}
		tool := SetPriorityTool(engine, client, client, route.CategoryBug, "item-1")
		assert.Equal(t, "set_priority", tool.Name)

		out, err := tool.Execute(ctx, map[string]interface{}{
			"impact": "critical", "urgency": "high", "reason": "data loss on save",
		})
		require.NoError(t, err)
		assert.Equal(t, "priority set to 1", out)
		assert.Equal(t, []int{1}, client.priorities)
		require.Len(t, client.comments, 1)
		assert.Contains(t, client.comments[0], "Priority set to 1")
		assert.Contains(t, client.comments[0], "data loss on save")
	})

	t.Run("category dimensions", func(t *testing.T) {
		client := &fakeClient{}
		tool := SetPriorityTool(engine, client, client, route.CategoryFeature, "item-2")

		out, err := tool.Execute(ctx, map[string]interface{}{
			"business_value": "low", "implementation_effort": "xlarge", "reason": "nice to have",
		})
		require.NoError(t, err)
		assert.Equal(t, "priority set to 4", out)
	})

	t.Run("missing dimension", func(t *testing.T) {
		tool := SetPriorityTool(engine, &fakeClient{}, &fakeClient{}, route.CategoryBug, "item-3")
		_, err := tool.Execute(ctx, map[string]interface{}{"impact": "high", "reason": "r"})
		assert.ErrorContains(t, err, "urgency")
	})

	t.Run("setter failure surfaces", func(t *testing.T) {
		client := &fakeClient{setErr: errors.New("api down")}
		tool := SetPriorityTool(engine, client, client, route.CategoryBug, "item-4")
		_, err := tool.Execute(ctx, map[string]interface{}{
			"impact": "low", "urgency": "low", "reason": "r",
		})
		assert.ErrorContains(t, err, "api down")
		assert.Empty(t, client.comments)
	})
}
