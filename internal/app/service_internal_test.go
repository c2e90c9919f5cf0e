package service

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/triage/internal/adapters/journal"
	"github.com/okian/triage/internal/domain/auth"
	"github.com/okian/triage/internal/domain/event"
	"github.com/okian/triage/internal/domain/route"
	"github.com/okian/triage/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type countingDispatcher struct {
	calls int
}

func (d *countingDispatcher) Dispatch(_ context.Context, _ event.InboundEvent, _ route.Decision) (string, error) {
	d.calls++
	return "ok", nil
}

type capturingRecorder struct {
	entries []journal.Entry
}

func (r *capturingRecorder) Record(_ context.Context, e journal.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestHandleAcceptedItemID(t *testing.T) {
	Convey("Given a started service", t, func() {
		verifier, err := auth.NewVerifier("s3cret")
		So(err, ShouldBeNil)

		dispatcher := &countingDispatcher{}
		recorder := &capturingRecorder{}
		s := New(verifier, dispatcher, WithJournal(recorder))
		So(s.Start(context.Background()), ShouldBeNil)
		defer s.Stop()

		Convey("When an accepted event carries no item id", func() {
			res := s.handleAccepted(context.Background(), event.InboundEvent{
				DeliveryID: "d1",
				Type:       "Issue",
				Action:     "create",
				Title:      "Crash",
			})

			Convey("Then it fails as a payload fault before any side effect", func() {
				So(res.Status, ShouldEqual, StatusPayloadFault)
				So(res.Detail, ShouldEqual, "missing item id")
				So(dispatcher.calls, ShouldEqual, 0)
				So(len(recorder.entries), ShouldEqual, 1)
				So(recorder.entries[0].Outcome, ShouldEqual, "payload_fault")
			})
		})

		Convey("When the item id is present", func() {
			res := s.handleAccepted(context.Background(), event.InboundEvent{
				DeliveryID: "d2",
				ItemID:     "item-1",
				Labels:     []event.Label{{ID: "l1", Name: "Bug"}},
			})

			Convey("Then the pipeline proceeds to dispatch", func() {
				So(res.Status, ShouldEqual, StatusDispatched)
				So(dispatcher.calls, ShouldEqual, 1)
			})
		})
	})
}
