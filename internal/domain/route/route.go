// Package route maps item labels onto the closed set of handling categories.
package route

import "strings"

// Category is one of the closed handling destinations, plus the coordinating
// Manager role. Manager participates in every pipeline run but is never a
// routing target.
type Category int

const (
	CategoryBug Category = iota
	CategoryFeature
	CategoryImprovement
	CategoryManager
)

// Categories lists the routable destinations in a fixed order.
var Categories = []Category{CategoryBug, CategoryFeature, CategoryImprovement}

func (c Category) String() string {
	switch c {
	case CategoryBug:
		return "bug"
	case CategoryFeature:
		return "feature"
	case CategoryImprovement:
		return "improvement"
	case CategoryManager:
		return "manager"
	default:
		return "unknown"
	}
}

// ReasonInvalidLabel is the rejection reason for labels outside the category
// set. A rejection is an actionable request for a valid label, not a hard
// pipeline failure.
const ReasonInvalidLabel = "invalid label"

// Decision is a tagged routing result: either the item is routed to exactly
// one category or rejected with a reason.
type Decision struct {
	Routed   bool
	Category Category
	Reason   string
}

// Route matches the first label on the item (empty string if none) against
// the category names. Matching is case-insensitive: the label is lowercased
// before comparison.
func Route(label string) Decision {
	switch strings.ToLower(label) {
	case "bug":
		return Decision{Routed: true, Category: CategoryBug}
	case "feature":
		return Decision{Routed: true, Category: CategoryFeature}
	case "improvement":
		return Decision{Routed: true, Category: CategoryImprovement}
	default:
		return Decision{Reason: ReasonInvalidLabel}
	}
}
