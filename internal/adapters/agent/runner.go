// Package agent runs model-backed analysis for routed items. The pipeline
// only supplies inputs and awaits a single combined result; everything the
// model does in between (tool calls, research) is internal to this adapter.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/okian/triage/pkg/logger"
	"github.com/okian/triage/pkg/metrics"
)

const (
	// DefaultModel is used when configuration does not override it.
	DefaultModel = "claude-sonnet-4-5-20250929"

	// DefaultStepLimit bounds tool-use iterations per run.
	DefaultStepLimit = 10

	maxTokensPerCall = 4096
)

// Sentinel error kinds.
var (
	ErrMissingAPIKey  = errors.New("anthropic api key is not configured")
	ErrStepLimit      = errors.New("run exceeded step limit")
	ErrUnexpectedStop = errors.New("unexpected stop reason")
	ErrRunFailed      = errors.New("agent run failed")
)

// Config holds runner configuration.
type Config struct {
	APIKey        string // falls back to ANTHROPIC_API_KEY when empty
	Model         string
	StepLimit     int
	MaxConcurrent int // concurrent model calls across all runs; 0 = unlimited
}

// Runner executes tool-use conversations against the model.
type Runner struct {
	client    *anthropic.Client
	model     string
	stepLimit int
	sem       *semaphore.Weighted
}

// NewRunner builds a Runner. A missing API key is a configuration fault.
func NewRunner(cfg Config) (*Runner, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	stepLimit := cfg.StepLimit
	if stepLimit <= 0 {
		stepLimit = DefaultStepLimit
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	r := &Runner{
		client:    &client,
		model:     model,
		stepLimit: stepLimit,
	}
	if cfg.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return r, nil
}

// Run executes one tool-use conversation: promptContext seeds the first user
// turn, tools are offered to the model, and the loop continues until the
// model ends its turn or stepLimit iterations pass. stepLimit <= 0 uses the
// runner default.
func (r *Runner) Run(ctx context.Context, promptContext string, tools []Tool, stepLimit int) (string, error) {
	if stepLimit <= 0 {
		stepLimit = r.stepLimit
	}

	history := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(promptContext)),
	}
	toolParams := toolUnionParams(tools)
	byName := toolIndex(tools)

	for iteration := 0; iteration < stepLimit; iteration++ {
		response, err := r.call(ctx, history, toolParams)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrRunFailed, err)
		}

		metrics.RecordAgentTokens("input", response.Usage.InputTokens)
		metrics.RecordAgentTokens("output", response.Usage.OutputTokens)

		switch response.StopReason {
		case "end_turn", "max_tokens":
			text, truncated := collectText(response)
			if truncated {
				logger.Named("agent").Warn(ctx, "run stopped at the output token cap; result may be truncated",
					logger.Int("maxTokens", maxTokensPerCall))
			}
			return text, nil

		case "tool_use":
			history = append(history, response.ToParam())

			var results []anthropic.ContentBlockParamUnion
			for _, block := range response.Content {
				toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
				if !ok {
					continue
				}
				result, err := executeTool(ctx, byName, toolUse.Name, toolUse.Input)
				if err != nil {
					// Tool failures are reported back to the model, which
					// decides whether to retry, work around, or give up.
					results = append(results, anthropic.NewToolResultBlock(
						toolUse.ID, fmt.Sprintf("Error: %v", err), true))
					continue
				}
				results = append(results, anthropic.NewToolResultBlock(toolUse.ID, result, false))
			}
			history = append(history, anthropic.NewUserMessage(results...))

		default:
			return "", fmt.Errorf("%w: %s", ErrUnexpectedStop, response.StopReason)
		}
	}

	return "", fmt.Errorf("%w (%d iterations)", ErrStepLimit, stepLimit)
}

// collectText concatenates the text blocks of a response and reports whether
// the model was cut off at the token cap rather than finishing its turn.
func collectText(response *anthropic.Message) (string, bool) {
	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, response.StopReason == "max_tokens"
}

// call performs one model request under the concurrency limiter.
func (r *Runner) call(ctx context.Context, history []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer r.sem.Release(1)
	}

	return r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: maxTokensPerCall,
		Messages:  history,
		Tools:     tools,
	})
}
