package classify_test

import (
	"testing"

	"github.com/okian/triage/internal/domain/classify"
	"github.com/okian/triage/internal/domain/event"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given issue-created deliveries", t, func() {
		base := event.InboundEvent{
			Type:   "Issue",
			Action: "create",
			ItemID: "item-1",
			Title:  "Crash on save",
		}

		Convey("a complete creation is accepted", func() {
			out := classify.Classify(base)
			So(out.Accepted, ShouldBeTrue)
			So(out.Event.ItemID, ShouldEqual, "item-1")
		})

		Convey("a missing title is ignored", func() {
			e := base
			e.Title = ""
			out := classify.Classify(e)
			So(out.Accepted, ShouldBeFalse)
			So(out.Reason, ShouldEqual, classify.ReasonUnsupported)
		})

		Convey("a missing id is ignored", func() {
			e := base
			e.ItemID = ""
			So(classify.Classify(e).Accepted, ShouldBeFalse)
		})

		Convey("a non-Issue type is ignored", func() {
			e := base
			e.Type = "Comment"
			So(classify.Classify(e).Accepted, ShouldBeFalse)
		})
	})

	Convey("Given issue-update deliveries", t, func() {
		base := event.InboundEvent{
			Type:   "Issue",
			Action: "update",
			ItemID: "item-2",
		}

		Convey("an explicit updatedLabelIds field is accepted, even empty", func() {
			e := base
			e.UpdatedLabelIDs = []string{}
			So(classify.Classify(e).Accepted, ShouldBeTrue)
		})

		Convey("a present labels collection is accepted", func() {
			e := base
			e.HasLabels = true
			So(classify.Classify(e).Accepted, ShouldBeTrue)
		})

		Convey("an update carrying neither is ignored", func() {
			So(classify.Classify(base).Accepted, ShouldBeFalse)
		})

		Convey("an update without an id is ignored", func() {
			e := base
			e.ItemID = ""
			e.HasLabels = true
			So(classify.Classify(e).Accepted, ShouldBeFalse)
		})
	})

	Convey("Given an unrelated delivery", t, func() {
		e := event.InboundEvent{Type: "Project", Action: "remove"}

		Convey("it is ignored with the standard reason", func() {
			out := classify.Classify(e)
			So(out.Accepted, ShouldBeFalse)
			So(out.Reason, ShouldEqual, classify.ReasonUnsupported)
		})
	})
}
