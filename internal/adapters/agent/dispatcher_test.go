package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/okian/triage/internal/domain/event"
	"github.com/okian/triage/internal/domain/priority"
	"github.com/okian/triage/internal/domain/route"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	return r
}

func allSpecialists() map[route.Category]Client {
	return map[route.Category]Client{
		route.CategoryBug:         &fakeClient{},
		route.CategoryFeature:     &fakeClient{},
		route.CategoryImprovement: &fakeClient{},
	}
}

func TestNewRunner(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		_, err := NewRunner(Config{})
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("defaults applied", func(t *testing.T) {
		r, err := NewRunner(Config{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, r.model)
		assert.Equal(t, DefaultStepLimit, r.stepLimit)
		assert.Nil(t, r.sem)
	})

	t.Run("concurrency limiter", func(t *testing.T) {
		r, err := NewRunner(Config{APIKey: "sk-test", MaxConcurrent: 2})
		require.NoError(t, err)
		assert.NotNil(t, r.sem)
	})
}

func TestNewDispatcher(t *testing.T) {
	engine := priority.NewEngine()

	t.Run("nil runner", func(t *testing.T) {
		_, err := NewDispatcher(nil, engine, &fakeClient{}, allSpecialists())
		assert.ErrorIs(t, err, ErrRunFailed)
	})

	t.Run("nil manager", func(t *testing.T) {
		_, err := NewDispatcher(testRunner(t), engine, nil, allSpecialists())
		assert.ErrorIs(t, err, ErrRunFailed)
	})

	t.Run("missing specialist", func(t *testing.T) {
		clients := allSpecialists()
		delete(clients, route.CategoryFeature)
		_, err := NewDispatcher(testRunner(t), engine, &fakeClient{}, clients)
		assert.ErrorIs(t, err, ErrRunFailed)
		assert.ErrorContains(t, err, "feature")
	})

	t.Run("valid", func(t *testing.T) {
		d, err := NewDispatcher(testRunner(t), engine, &fakeClient{}, allSpecialists(),
			WithSearchProvider(&fakeProvider{}), WithStepLimit(5))
		require.NoError(t, err)
		assert.Equal(t, 5, d.stepLimit)
	})
}

func TestToolSets(t *testing.T) {
	engine := priority.NewEngine()
	ev := event.InboundEvent{ItemID: "item-1", Title: "crash"}

	t.Run("manager without search", func(t *testing.T) {
		d, err := NewDispatcher(testRunner(t), engine, &fakeClient{}, allSpecialists())
		require.NoError(t, err)

		names := toolNames(d.managerTools(ev, route.Route("Bug")))
		assert.Equal(t, []string{"post_comment", "set_initial_priority"}, names)
	})

	t.Run("manager with search", func(t *testing.T) {
		d, err := NewDispatcher(testRunner(t), engine, &fakeClient{}, allSpecialists(),
			WithSearchProvider(&fakeProvider{}))
		require.NoError(t, err)

		names := toolNames(d.managerTools(ev, route.Route("question")))
		assert.Equal(t, []string{"post_comment", "set_initial_priority", "search_knowledge"}, names)
	})

	t.Run("manager priority tool can act on unrouted items", func(t *testing.T) {
		manager := &fakeClient{}
		d, err := NewDispatcher(testRunner(t), engine, manager, allSpecialists())
		require.NoError(t, err)

		tools := d.managerTools(ev, route.Route("question"))
		out, err := tools[1].Execute(context.Background(), map[string]interface{}{"reason": "awaiting label"})
		require.NoError(t, err)
		assert.Equal(t, "initial priority set to 3", out)
		assert.Equal(t, []int{3}, manager.priorities)
	})

	t.Run("specialist carries priority tool", func(t *testing.T) {
		d, err := NewDispatcher(testRunner(t), engine, &fakeClient{}, allSpecialists(),
			WithSearchProvider(&fakeProvider{}))
		require.NoError(t, err)

		names := toolNames(d.specialistTools(ev, route.CategoryBug))
		assert.Equal(t, []string{"post_comment", "set_priority", "search_knowledge"}, names)
	})
}

func toolNames(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

func TestCollectText(t *testing.T) {
	t.Run("concatenates text blocks", func(t *testing.T) {
		msg := &anthropic.Message{
			StopReason: "end_turn",
			Content: []anthropic.ContentBlockUnion{
				{Type: "text", Text: "first "},
				{Type: "tool_use"},
				{Type: "text", Text: "second"},
			},
		}
		text, truncated := collectText(msg)
		assert.Equal(t, "first second", text)
		assert.False(t, truncated)
	})

	t.Run("flags a run cut off at the token cap", func(t *testing.T) {
		msg := &anthropic.Message{
			StopReason: "max_tokens",
			Content:    []anthropic.ContentBlockUnion{{Type: "text", Text: "partial analysis"}},
		}
		text, truncated := collectText(msg)
		assert.Equal(t, "partial analysis", text)
		assert.True(t, truncated)
	})
}

func TestBuildPromptContext(t *testing.T) {
	t.Run("labeled item", func(t *testing.T) {
		ev := event.InboundEvent{
			ItemID:      "item-1",
			Type:        "Issue",
			Action:      "create",
			Title:       "Crash on save",
			Description: "Editor crashes when saving large files.",
			Labels:      []event.Label{{ID: "l1", Name: "Bug"}, {ID: "l2", Name: "editor"}},
		}
		out := buildPromptContext(managerPrompt, ev)
		assert.Contains(t, out, "ID: item-1")
		assert.Contains(t, out, "Type: Issue (create)")
		assert.Contains(t, out, "Title: Crash on save")
		assert.Contains(t, out, "Labels: Bug, editor")
		assert.Contains(t, out, "triage coordinator")
	})

	t.Run("bare item", func(t *testing.T) {
		out := buildPromptContext(specialistPrompts[route.CategoryBug], event.InboundEvent{ItemID: "x"})
		assert.Contains(t, out, "Labels: none")
		assert.NotContains(t, out, "Description:")
	})
}
