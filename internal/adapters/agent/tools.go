package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/okian/triage/internal/adapters/linear"
	"github.com/okian/triage/internal/adapters/search"
	"github.com/okian/triage/internal/domain/priority"
	"github.com/okian/triage/internal/domain/route"
	"github.com/okian/triage/pkg/metrics"
)

// Tool pairs a model-facing schema with its executor. Executors receive the
// decoded tool input.
type Tool struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
	Execute     func(ctx context.Context, input map[string]interface{}) (string, error)
}

func toolUnionParams(tools []Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, len(tools))
	for i := range tools {
		tool := anthropic.ToolParam{
			Name:        tools[i].Name,
			Description: anthropic.String(tools[i].Description),
			InputSchema: tools[i].InputSchema,
		}
		params[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	return params
}

func toolIndex(tools []Tool) map[string]Tool {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return m
}

// executeTool decodes the raw tool input and dispatches to the named tool.
func executeTool(ctx context.Context, byName map[string]Tool, name string, input interface{}) (string, error) {
	tool, ok := byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	var inputMap map[string]interface{}
	switch v := input.(type) {
	case map[string]interface{}:
		inputMap = v
	case []byte:
		if err := json.Unmarshal(v, &inputMap); err != nil {
			return "", fmt.Errorf("failed to unmarshal tool input: %w", err)
		}
	case json.RawMessage:
		if err := json.Unmarshal(v, &inputMap); err != nil {
			return "", fmt.Errorf("failed to unmarshal tool input: %w", err)
		}
	default:
		return "", fmt.Errorf("invalid tool input format: %T", input)
	}

	return tool.Execute(ctx, inputMap)
}

func stringArg(input map[string]interface{}, key string) (string, error) {
	v, ok := input[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	return v, nil
}

// SearchTool exposes the knowledge search provider to the model.
func SearchTool(provider search.Provider) Tool {
	return Tool{
		Name:        "search_knowledge",
		Description: "Search the knowledge base for prior issues, known fixes and related documentation. Returns a list of matches.",
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Free-text search query (required)"},
			},
			Required: []string{"query"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			query, err := stringArg(input, "query")
			if err != nil {
				return "", err
			}
			results, err := provider.Query(ctx, query)
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return "no results", nil
			}
			var b strings.Builder
			for i, r := range results {
				fmt.Fprintf(&b, "%d. %s (%s)\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
			}
			return b.String(), nil
		},
	}
}

// PostCommentTool lets the model append a note to the item under triage.
// The item id is bound at dispatch time; the model only supplies the text.
func PostCommentTool(poster linear.CommentPoster, itemID string) Tool {
	return Tool{
		Name:        "post_comment",
		Description: "Append a comment to the issue being triaged.",
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"body": map[string]interface{}{"type": "string", "description": "Comment text, markdown allowed (required)"},
			},
			Required: []string{"body"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			body, err := stringArg(input, "body")
			if err != nil {
				return "", err
			}
			if err := poster.PostComment(ctx, itemID, body); err != nil {
				return "", err
			}
			return "comment posted", nil
		},
	}
}

// priorityDimensions names the two assessment inputs per category.
var priorityDimensions = map[route.Category][2]string{
	route.CategoryBug:         {"impact", "urgency"},
	route.CategoryFeature:     {"business_value", "implementation_effort"},
	route.CategoryImprovement: {"technical_impact", "implementation_risk"},
}

func dimensionLevels(c route.Category, idx int) []string {
	if c == route.CategoryFeature && idx == 1 {
		return []string{"small", "medium", "large", "xlarge"}
	}
	if c == route.CategoryImprovement && idx == 1 {
		return []string{"low", "medium", "high"}
	}
	return []string{"critical", "high", "medium", "low"}
}

// SetInitialPriorityTool lets the coordinator stamp a starting priority on
// the item before any specialist analysis. Routed items are assessed through
// the category matrix; unrouted items get the default level until a valid
// label arrives.
func SetInitialPriorityTool(engine *priority.Engine, setter linear.PrioritySetter, decision route.Decision, itemID string) Tool {
	if !decision.Routed {
		return Tool{
			Name:        "set_initial_priority",
			Description: "Record the default starting priority for this item until a valid label is applied.",
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"reason": map[string]interface{}{"type": "string", "description": "Short note on why the default level applies (required)"},
				},
				Required: []string{"reason"},
			},
			Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
				if _, err := stringArg(input, "reason"); err != nil {
					return "", err
				}
				if err := setter.SetPriority(ctx, itemID, priority.DefaultPriority); err != nil {
					return "", err
				}
				metrics.RecordPriorityAssigned(route.CategoryManager.String(), strconv.Itoa(priority.DefaultPriority))
				return fmt.Sprintf("initial priority set to %d", priority.DefaultPriority), nil
			},
		}
	}

	dims := priorityDimensions[decision.Category]
	return Tool{
		Name: "set_initial_priority",
		Description: fmt.Sprintf(
			"Record a starting priority for this %s by assessing %s and %s (1 highest .. 4 lowest). The specialist may refine it.",
			decision.Category, dims[0], dims[1]),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				dims[0]:  map[string]interface{}{"type": "string", "enum": dimensionLevels(decision.Category, 0)},
				dims[1]:  map[string]interface{}{"type": "string", "enum": dimensionLevels(decision.Category, 1)},
				"reason": map[string]interface{}{"type": "string", "description": "Short justification for the assessment (required)"},
			},
			Required: []string{dims[0], dims[1], "reason"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			dim1, err := stringArg(input, dims[0])
			if err != nil {
				return "", err
			}
			dim2, err := stringArg(input, dims[1])
			if err != nil {
				return "", err
			}
			if _, err := stringArg(input, "reason"); err != nil {
				return "", err
			}

			assessment := engine.Assess(decision.Category, dim1, dim2)
			if err := setter.SetPriority(ctx, itemID, assessment.Priority); err != nil {
				return "", err
			}
			metrics.RecordPriorityAssigned(decision.Category.String(), strconv.Itoa(assessment.Priority))
			return fmt.Sprintf("initial priority set to %d", assessment.Priority), nil
		},
	}
}

// SetPriorityTool scores the model's assessment through the priority engine,
// persists the result on the item, and appends an explanatory note with the
// two input levels and the model's reason.
func SetPriorityTool(engine *priority.Engine, setter linear.PrioritySetter, poster linear.CommentPoster, category route.Category, itemID string) Tool {
	dims := priorityDimensions[category]
	return Tool{
		Name: "set_priority",
		Description: fmt.Sprintf(
			"Assess %s and %s for this %s and persist the resulting priority (1 highest .. 4 lowest).",
			dims[0], dims[1], category),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				dims[0]:  map[string]interface{}{"type": "string", "enum": dimensionLevels(category, 0)},
				dims[1]:  map[string]interface{}{"type": "string", "enum": dimensionLevels(category, 1)},
				"reason": map[string]interface{}{"type": "string", "description": "Short justification for the assessment (required)"},
			},
			Required: []string{dims[0], dims[1], "reason"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			dim1, err := stringArg(input, dims[0])
			if err != nil {
				return "", err
			}
			dim2, err := stringArg(input, dims[1])
			if err != nil {
				return "", err
			}
			reason, err := stringArg(input, "reason")
			if err != nil {
				return "", err
			}

			assessment := engine.Assess(category, dim1, dim2)
			if err := setter.SetPriority(ctx, itemID, assessment.Priority); err != nil {
				return "", err
			}
			metrics.RecordPriorityAssigned(category.String(), strconv.Itoa(assessment.Priority))

			note := fmt.Sprintf("Priority set to %d (%s: %s, %s: %s). %s",
				assessment.Priority, dims[0], dim1, dims[1], dim2, reason)
			if err := poster.PostComment(ctx, itemID, note); err != nil {
				return "", err
			}
			return fmt.Sprintf("priority set to %d", assessment.Priority), nil
		},
	}
}
