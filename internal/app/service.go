// Package service orchestrates the delivery pipeline behind the HTTP API:
// authenticity checks, payload parsing, classification, label routing,
// duplicate handling, journaling and agent dispatch.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/triage/internal/adapters/journal"
	"github.com/okian/triage/internal/adapters/linear"
	"github.com/okian/triage/internal/domain/auth"
	"github.com/okian/triage/internal/domain/classify"
	"github.com/okian/triage/internal/domain/dedupe"
	"github.com/okian/triage/internal/domain/event"
	"github.com/okian/triage/internal/domain/route"
	"github.com/okian/triage/pkg/logger"
	"github.com/okian/triage/pkg/metrics"
)

// Delivery is one raw inbound webhook call as seen by the transport.
type Delivery struct {
	SourceIP   string
	DeliveryID string
	EventType  string
	Signature  string
	Body       []byte
}

// Status is the terminal state of a handled delivery.
type Status int

const (
	// StatusDispatched means the delivery was accepted and agent work ran.
	StatusDispatched Status = iota
	// StatusIgnored means the delivery matched no actionable predicate.
	StatusIgnored
	// StatusDuplicate means the delivery id was already processed and the
	// enforce policy short-circuited it.
	StatusDuplicate
	// StatusAuthFailed means an authenticity check rejected the delivery.
	StatusAuthFailed
	// StatusPayloadFault means the body could not be used.
	StatusPayloadFault
	// StatusDispatchFailed means agent dispatch returned an error.
	StatusDispatchFailed
)

// Result is what the transport layer renders into a response.
type Result struct {
	Status     Status
	Detail     string // ignore reason, routing reason, or failing auth check
	TaskResult string // specialist output for routed dispatches
	Err        error
}

// Dispatcher runs agent work for an accepted event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.InboundEvent, decision route.Decision) (string, error)
}

// Recorder journals delivery outcomes.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Service implements the API dependencies for the triage pipeline.
type Service struct {
	mu sync.Mutex

	verifier   *auth.Verifier
	dispatcher Dispatcher
	tracker    dedupe.Tracker
	journal    Recorder
	notifier   linear.CommentPoster

	policy          dedupe.Policy
	dedupeSize      int
	dispatchTimeout time.Duration

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDedupePolicy sets how repeated delivery ids are treated.
func WithDedupePolicy(p dedupe.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithDedupeSize sets the size of the seen-delivery cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithTracker replaces the seen-delivery tracker.
func WithTracker(t dedupe.Tracker) Option {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithJournal wires the delivery journal. Without it outcomes are not
// persisted.
func WithJournal(r Recorder) Option {
	return func(s *Service) {
		s.journal = r
	}
}

// WithNotifier sets the identity used for best-effort failure notes on items
// whose dispatch failed.
func WithNotifier(n linear.CommentPoster) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithDispatchTimeout bounds one agent dispatch.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dispatchTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(verifier *auth.Verifier, dispatcher Dispatcher, opts ...Option) *Service {
	s := &Service{
		verifier:        verifier,
		dispatcher:      dispatcher,
		policy:          dedupe.PolicyObserve,
		dedupeSize:      50000,
		dispatchTimeout: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tracker == nil {
		s.tracker = dedupe.NewInMemoryTracker(dedupe.WithMaxSize(s.dedupeSize))
	}

	s.started = true
	s.logger.Info(ctx, "triage service started",
		logger.String("dedupePolicy", s.policy.String()),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("dispatchTimeout", s.dispatchTimeout.String()),
	)
	return nil
}

// Stop shuts the service down. The journal handle, when owned, is closed by
// the process entry point, not here.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "triage service stopped")
}

// Handle runs one delivery through the full pipeline and returns its terminal
// state. It never panics on untrusted input; every outcome is a Result.
func (s *Service) Handle(ctx context.Context, d Delivery) Result {
	metrics.RecordDeliveryReceived()

	if err := s.verifier.VerifyIP(d.SourceIP); err != nil {
		return s.authFailure(ctx, d, err)
	}
	if err := s.verifier.VerifySignature(d.Signature, d.Body); err != nil {
		return s.authFailure(ctx, d, err)
	}

	ev, err := event.Parse(d.DeliveryID, d.EventType, d.Body)
	if err != nil {
		s.logger.Warn(ctx, "payload parse failed",
			logger.String("deliveryID", d.DeliveryID),
			logger.Error(err),
		)
		return Result{Status: StatusPayloadFault, Detail: "malformed payload", Err: err}
	}

	if err := s.verifier.VerifyTimestamp(ev.WebhookTimestamp); err != nil {
		return s.authFailure(ctx, d, err)
	}

	outcome := classify.Classify(ev)
	if !outcome.Accepted {
		metrics.RecordDeliveryIgnored()
		s.logger.Debug(ctx, "delivery ignored",
			logger.String("deliveryID", ev.DeliveryID),
			logger.String("reason", outcome.Reason),
		)
		s.record(ctx, ev, "", "ignored", outcome.Reason)
		return Result{Status: StatusIgnored, Detail: outcome.Reason}
	}

	return s.handleAccepted(ctx, outcome.Event)
}

// handleAccepted runs the post-classification stages. The item id is verified
// once more before any side effect: comments, priority updates and journal
// rows are all keyed on it, and the check must not depend on what the
// classification predicates happened to look at.
func (s *Service) handleAccepted(ctx context.Context, ev event.InboundEvent) Result {
	if ev.ItemID == "" {
		s.logger.Error(ctx, "accepted event carries no item id",
			logger.String("deliveryID", ev.DeliveryID),
		)
		s.record(ctx, ev, "", "payload_fault", "missing item id")
		return Result{Status: StatusPayloadFault, Detail: "missing item id"}
	}

	decision := route.Route(ev.FirstLabel())
	if !decision.Routed {
		metrics.RecordRoutingRejection()
	}

	if dup := s.checkDuplicate(ctx, ev); dup != nil {
		return *dup
	}

	return s.dispatch(ctx, ev, decision)
}

// SeenCount reports the current size of the seen-delivery cache.
func (s *Service) SeenCount() int64 {
	if s.tracker == nil {
		return 0
	}
	return s.tracker.Size()
}

func (s *Service) authFailure(ctx context.Context, d Delivery, err error) Result {
	check := auth.FailedCheck(err)
	metrics.RecordAuthFailure(check)
	s.logger.Warn(ctx, "delivery rejected",
		logger.String("deliveryID", d.DeliveryID),
		logger.String("check", check),
		logger.Error(err),
	)
	return Result{Status: StatusAuthFailed, Detail: check, Err: err}
}

// checkDuplicate applies the dedupe policy. It returns a terminal Result only
// when the enforce policy short-circuits the delivery.
func (s *Service) checkDuplicate(ctx context.Context, ev event.InboundEvent) *Result {
	if s.policy == dedupe.PolicyOff || ev.DeliveryID == "" {
		return nil
	}
	if !s.tracker.SeenAndRecord(ctx, ev.DeliveryID) {
		return nil
	}

	metrics.RecordDeliveryDuplicate()
	if s.policy == dedupe.PolicyObserve {
		s.logger.Warn(ctx, "duplicate delivery observed",
			logger.String("deliveryID", ev.DeliveryID),
		)
		return nil
	}

	s.logger.Info(ctx, "duplicate delivery short-circuited",
		logger.String("deliveryID", ev.DeliveryID),
	)
	s.record(ctx, ev, "", "duplicate", "")
	return &Result{Status: StatusDuplicate, Detail: "duplicate delivery"}
}

func (s *Service) dispatch(ctx context.Context, ev event.InboundEvent, decision route.Decision) Result {
	category := "manager"
	if decision.Routed {
		category = decision.Category.String()
	}
	metrics.RecordDispatch(category)

	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.dispatcher.Dispatch(dctx, ev, decision)
	metrics.RecordDispatchDuration(time.Since(start).Seconds())

	if err != nil {
		metrics.RecordDispatchFailure()
		s.logger.Error(ctx, "dispatch failed",
			logger.String("deliveryID", ev.DeliveryID),
			logger.String("itemID", ev.ItemID),
			logger.String("category", category),
			logger.Error(err),
		)

		// Allow the source to redeliver after a failure.
		if s.policy == dedupe.PolicyEnforce {
			s.tracker.Unrecord(ctx, ev.DeliveryID)
		}
		s.notifyFailure(ctx, ev, err)
		s.record(ctx, ev, category, "dispatch_failed", err.Error())
		return Result{Status: StatusDispatchFailed, Detail: category, Err: err}
	}

	s.logger.Info(ctx, "delivery dispatched",
		logger.String("deliveryID", ev.DeliveryID),
		logger.String("itemID", ev.ItemID),
		logger.String("category", category),
	)
	s.record(ctx, ev, category, "dispatched", decision.Reason)
	return Result{Status: StatusDispatched, Detail: decision.Reason, TaskResult: text}
}

// notifyFailure posts a best-effort note on the item whose dispatch failed.
// A failed notification is counted and logged but never changes the outcome.
func (s *Service) notifyFailure(ctx context.Context, ev event.InboundEvent, dispatchErr error) {
	if s.notifier == nil || ev.ItemID == "" {
		return
	}
	body := fmt.Sprintf("Automated triage could not complete for this item: %v. It may be retried on the next delivery.", dispatchErr)
	if err := s.notifier.PostComment(ctx, ev.ItemID, body); err != nil {
		metrics.RecordNotificationFailure()
		s.logger.Warn(ctx, "failure notification not delivered",
			logger.String("itemID", ev.ItemID),
			logger.Error(err),
		)
	}
}

// record journals the outcome. Journal failures are counted and logged only.
func (s *Service) record(ctx context.Context, ev event.InboundEvent, category, outcome, detail string) {
	if s.journal == nil {
		return
	}
	err := s.journal.Record(ctx, journal.Entry{
		DeliveryID: ev.DeliveryID,
		EventType:  ev.EventType,
		Action:     ev.Action,
		ItemID:     ev.ItemID,
		Category:   category,
		Outcome:    outcome,
		Detail:     detail,
	})
	if err != nil {
		metrics.RecordJournalError()
		s.logger.Warn(ctx, "journal write failed",
			logger.String("deliveryID", ev.DeliveryID),
			logger.Error(err),
		)
	}
}
