package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/triage/internal/adapters/linear"
	"github.com/okian/triage/internal/adapters/search"
	"github.com/okian/triage/internal/domain/event"
	"github.com/okian/triage/internal/domain/priority"
	"github.com/okian/triage/internal/domain/route"
	"github.com/okian/triage/pkg/logger"
)

// Client is the tracker surface an agent identity operates through.
type Client interface {
	linear.CommentPoster
	linear.PrioritySetter
}

// Dispatcher fans an accepted event out to agent runs: the coordinator run
// always happens, a specialist run happens when routing picked a category.
type Dispatcher struct {
	runner      *Runner
	engine      *priority.Engine
	manager     Client
	specialists map[route.Category]Client
	search      search.Provider
	stepLimit   int
	log         logger.Logger
}

// DispatchOption applies a configuration option to the Dispatcher.
type DispatchOption func(*Dispatcher)

// WithSearchProvider wires knowledge search into agent tool sets. Without it
// runs proceed with tracker tools only.
func WithSearchProvider(p search.Provider) DispatchOption {
	return func(d *Dispatcher) {
		d.search = p
	}
}

// WithStepLimit overrides the per-run tool-use iteration bound.
func WithStepLimit(n int) DispatchOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.stepLimit = n
		}
	}
}

// WithLogger replaces the dispatcher logger.
func WithLogger(l logger.Logger) DispatchOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDispatcher builds a Dispatcher. specialists must hold an entry for every
// routable category; the coordinator identity is separate.
func NewDispatcher(runner *Runner, engine *priority.Engine, manager Client, specialists map[route.Category]Client, opts ...DispatchOption) (*Dispatcher, error) {
	if runner == nil {
		return nil, fmt.Errorf("%w: runner is nil", ErrRunFailed)
	}
	if manager == nil {
		return nil, fmt.Errorf("%w: manager client is nil", ErrRunFailed)
	}
	for _, c := range route.Categories {
		if specialists[c] == nil {
			return nil, fmt.Errorf("%w: no client for category %s", ErrRunFailed, c)
		}
	}

	d := &Dispatcher{
		runner:      runner,
		engine:      engine,
		manager:     manager,
		specialists: specialists,
		log:         logger.Named("agent"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch runs the coordinator and, when decision is routed, the category
// specialist. Runs execute concurrently; the specialist's final text is the
// task result. An unrouted dispatch returns the coordinator's text instead.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.InboundEvent, decision route.Decision) (string, error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := d.runner.Run(gctx, buildPromptContext(managerPrompt, ev), d.managerTools(ev, decision), d.stepLimit)
		if err != nil {
			return fmt.Errorf("coordinator run: %w", err)
		}
		d.log.Debug(gctx, "coordinator run finished",
			logger.String("delivery_id", ev.DeliveryID),
			logger.String("item_id", ev.ItemID),
			logger.Int("result_len", len(text)))
		return nil
	})

	var taskResult string
	if decision.Routed {
		g.Go(func() error {
			text, err := d.runner.Run(gctx, buildPromptContext(specialistPrompts[decision.Category], ev), d.specialistTools(ev, decision.Category), d.stepLimit)
			if err != nil {
				return fmt.Errorf("%s run: %w", decision.Category, err)
			}
			taskResult = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	if !decision.Routed {
		return d.coordinatorSummary(ev, decision), nil
	}
	return taskResult, nil
}

// coordinatorSummary is the caller-facing text for unrouted dispatches. The
// coordinator already posted the label request on the item itself.
func (d *Dispatcher) coordinatorSummary(ev event.InboundEvent, decision route.Decision) string {
	return fmt.Sprintf("item %s not routed (%s); coordinator asked for a valid label", ev.ItemID, decision.Reason)
}

func (d *Dispatcher) managerTools(ev event.InboundEvent, decision route.Decision) []Tool {
	tools := []Tool{
		PostCommentTool(d.manager, ev.ItemID),
		SetInitialPriorityTool(d.engine, d.manager, decision, ev.ItemID),
	}
	if d.search != nil {
		tools = append(tools, SearchTool(d.search))
	}
	return tools
}

func (d *Dispatcher) specialistTools(ev event.InboundEvent, category route.Category) []Tool {
	client := d.specialists[category]
	tools := []Tool{
		PostCommentTool(client, ev.ItemID),
		SetPriorityTool(d.engine, client, client, category, ev.ItemID),
	}
	if d.search != nil {
		tools = append(tools, SearchTool(d.search))
	}
	return tools
}
