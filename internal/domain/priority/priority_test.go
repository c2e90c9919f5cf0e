package priority_test

import (
	"testing"

	"github.com/okian/triage/internal/domain/priority"
	"github.com/okian/triage/internal/domain/route"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBugMatrix(t *testing.T) {
	Convey("Given the bug matrix (impact x urgency)", t, func() {
		e := priority.NewEngine()

		expected := map[[2]string]int{
			{"critical", "critical"}: 1, {"critical", "high"}: 1, {"critical", "medium"}: 2, {"critical", "low"}: 2,
			{"high", "critical"}: 1, {"high", "high"}: 2, {"high", "medium"}: 2, {"high", "low"}: 3,
			{"medium", "critical"}: 2, {"medium", "high"}: 2, {"medium", "medium"}: 3, {"medium", "low"}: 3,
			{"low", "critical"}: 2, {"low", "high"}: 3, {"low", "medium"}: 3, {"low", "low"}: 4,
		}

		Convey("every declared pair scores exactly", func() {
			So(len(expected), ShouldEqual, 16)
			for k, want := range expected {
				So(e.Score(route.CategoryBug, k[0], k[1]), ShouldEqual, want)
			}
		})

		Convey("impact=high urgency=critical scores 1", func() {
			So(e.Score(route.CategoryBug, "high", "critical"), ShouldEqual, 1)
		})
	})
}

func TestFeatureMatrix(t *testing.T) {
	Convey("Given the feature matrix (businessValue x implementationEffort)", t, func() {
		e := priority.NewEngine()

		expected := map[[2]string]int{
			{"critical", "small"}: 1, {"critical", "medium"}: 1, {"critical", "large"}: 2, {"critical", "xlarge"}: 2,
			{"high", "small"}: 1, {"high", "medium"}: 2, {"high", "large"}: 2, {"high", "xlarge"}: 3,
			{"medium", "small"}: 2, {"medium", "medium"}: 2, {"medium", "large"}: 3, {"medium", "xlarge"}: 3,
			{"low", "small"}: 3, {"low", "medium"}: 3, {"low", "large"}: 4, {"low", "xlarge"}: 4,
		}

		Convey("every declared pair scores exactly", func() {
			So(len(expected), ShouldEqual, 16)
			for k, want := range expected {
				So(e.Score(route.CategoryFeature, k[0], k[1]), ShouldEqual, want)
			}
		})

		Convey("value=critical effort=xlarge scores 2", func() {
			So(e.Score(route.CategoryFeature, "critical", "xlarge"), ShouldEqual, 2)
		})
	})
}

func TestImprovementMatrix(t *testing.T) {
	Convey("Given the improvement matrix (technicalImpact x implementationRisk)", t, func() {
		e := priority.NewEngine()

		expected := map[[2]string]int{
			{"critical", "low"}: 1, {"critical", "medium"}: 1, {"critical", "high"}: 2,
			{"high", "low"}: 1, {"high", "medium"}: 2, {"high", "high"}: 3,
			{"medium", "low"}: 2, {"medium", "medium"}: 3, {"medium", "high"}: 3,
			{"low", "low"}: 3, {"low", "medium"}: 3, {"low", "high"}: 4,
		}

		Convey("every declared pair scores exactly", func() {
			So(len(expected), ShouldEqual, 12)
			for k, want := range expected {
				So(e.Score(route.CategoryImprovement, k[0], k[1]), ShouldEqual, want)
			}
		})
	})
}

func TestDefaults(t *testing.T) {
	Convey("Given out-of-domain inputs", t, func() {
		e := priority.NewEngine()

		Convey("unknown level pairs yield the default 3, never an error", func() {
			So(e.Score(route.CategoryBug, "enormous", "critical"), ShouldEqual, 3)
			So(e.Score(route.CategoryFeature, "critical", "tiny"), ShouldEqual, 3)
			So(e.Score(route.CategoryImprovement, "", ""), ShouldEqual, 3)
		})

		Convey("a non-routable category yields the default", func() {
			So(e.Score(route.CategoryManager, "critical", "critical"), ShouldEqual, 3)
		})

		Convey("all scores stay within 1..4", func() {
			levels := []string{"critical", "high", "medium", "low", "small", "large", "xlarge", "bogus", ""}
			for _, c := range route.Categories {
				for _, d1 := range levels {
					for _, d2 := range levels {
						p := e.Score(c, d1, d2)
						So(p, ShouldBeBetweenOrEqual, priority.Highest, priority.Lowest)
					}
				}
			}
		})
	})

	Convey("Given mixed-case or padded levels", t, func() {
		e := priority.NewEngine()

		Convey("levels are normalized before lookup", func() {
			So(e.Score(route.CategoryBug, "Critical", " HIGH "), ShouldEqual, 1)
		})
	})
}

func TestInjectedMatrix(t *testing.T) {
	Convey("Given an engine with an alternate bug matrix", t, func() {
		alt := priority.Matrix{{Dim1: "x", Dim2: "y"}: 4}
		e := priority.NewEngine(priority.WithMatrix(route.CategoryBug, alt))

		Convey("the injected table wins", func() {
			So(e.Score(route.CategoryBug, "x", "y"), ShouldEqual, 4)
			So(e.Score(route.CategoryBug, "critical", "critical"), ShouldEqual, 3)
		})

		Convey("other categories keep their defaults", func() {
			So(e.Score(route.CategoryFeature, "critical", "small"), ShouldEqual, 1)
		})
	})
}

func TestAssess(t *testing.T) {
	Convey("Given an assessment", t, func() {
		e := priority.NewEngine()
		a := e.Assess(route.CategoryBug, "high", "critical")

		Convey("it records inputs and result", func() {
			So(a.Category, ShouldEqual, route.CategoryBug)
			So(a.Dim1, ShouldEqual, "high")
			So(a.Dim2, ShouldEqual, "critical")
			So(a.Priority, ShouldEqual, 1)
		})
	})
}
