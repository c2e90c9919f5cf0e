// Package priority computes deterministic priority scores from categorical
// assessments via fixed per-category lookup matrices.
package priority

import (
	"strings"

	"github.com/okian/triage/internal/domain/route"
)

// DefaultPriority is returned for any input pair outside a matrix's declared
// domain. The matrices are total functions: scoring never fails.
const DefaultPriority = 3

// Priorities run 1 (highest urgency/importance) to 4 (lowest).
const (
	Highest = 1
	Lowest  = 4
)

// Key is an ordered pair of categorical levels, e.g. (impact, urgency).
type Key struct {
	Dim1 string
	Dim2 string
}

// Matrix maps level pairs to priorities.
type Matrix map[Key]int

// Assessment records one scoring outcome.
type Assessment struct {
	Category route.Category
	Dim1     string
	Dim2     string
	Priority int
}

// DefaultBugMatrix maps impact x urgency, both over
// {critical, high, medium, low}.
func DefaultBugMatrix() Matrix {
	return Matrix{
		{"critical", "critical"}: 1, {"critical", "high"}: 1, {"critical", "medium"}: 2, {"critical", "low"}: 2,
		{"high", "critical"}: 1, {"high", "high"}: 2, {"high", "medium"}: 2, {"high", "low"}: 3,
		{"medium", "critical"}: 2, {"medium", "high"}: 2, {"medium", "medium"}: 3, {"medium", "low"}: 3,
		{"low", "critical"}: 2, {"low", "high"}: 3, {"low", "medium"}: 3, {"low", "low"}: 4,
	}
}

// DefaultFeatureMatrix maps businessValue {critical, high, medium, low} x
// implementationEffort {small, medium, large, xlarge}.
func DefaultFeatureMatrix() Matrix {
	return Matrix{
		{"critical", "small"}: 1, {"critical", "medium"}: 1, {"critical", "large"}: 2, {"critical", "xlarge"}: 2,
		{"high", "small"}: 1, {"high", "medium"}: 2, {"high", "large"}: 2, {"high", "xlarge"}: 3,
		{"medium", "small"}: 2, {"medium", "medium"}: 2, {"medium", "large"}: 3, {"medium", "xlarge"}: 3,
		{"low", "small"}: 3, {"low", "medium"}: 3, {"low", "large"}: 4, {"low", "xlarge"}: 4,
	}
}

// DefaultImprovementMatrix maps technicalImpact {critical, high, medium, low}
// x implementationRisk {low, medium, high}.
func DefaultImprovementMatrix() Matrix {
	return Matrix{
		{"critical", "low"}: 1, {"critical", "medium"}: 1, {"critical", "high"}: 2,
		{"high", "low"}: 1, {"high", "medium"}: 2, {"high", "high"}: 3,
		{"medium", "low"}: 2, {"medium", "medium"}: 3, {"medium", "high"}: 3,
		{"low", "low"}: 3, {"low", "medium"}: 3, {"low", "high"}: 4,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMatrix replaces the matrix for one category, for testing with
// alternate tables.
func WithMatrix(c route.Category, m Matrix) Option {
	return func(e *Engine) {
		if m != nil {
			e.matrices[c] = m
		}
	}
}

// Engine is a pure scoring function over injected matrices. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	matrices map[route.Category]Matrix
}

// NewEngine builds an Engine with the three default matrices.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		matrices: map[route.Category]Matrix{
			route.CategoryBug:         DefaultBugMatrix(),
			route.CategoryFeature:     DefaultFeatureMatrix(),
			route.CategoryImprovement: DefaultImprovementMatrix(),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score looks up the priority for (dim1, dim2) in the category's matrix.
// Levels are normalized to lowercase. Unknown categories or level pairs
// yield DefaultPriority; Score never fails.
func (e *Engine) Score(c route.Category, dim1, dim2 string) int {
	m, ok := e.matrices[c]
	if !ok {
		return DefaultPriority
	}
	key := Key{
		Dim1: strings.ToLower(strings.TrimSpace(dim1)),
		Dim2: strings.ToLower(strings.TrimSpace(dim2)),
	}
	if p, ok := m[key]; ok {
		return p
	}
	return DefaultPriority
}

// Assess scores and records the inputs alongside the result.
func (e *Engine) Assess(c route.Category, dim1, dim2 string) Assessment {
	return Assessment{
		Category: c,
		Dim1:     dim1,
		Dim2:     dim2,
		Priority: e.Score(c, dim1, dim2),
	}
}
