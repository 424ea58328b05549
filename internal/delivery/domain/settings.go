package domain

import "github.com/assessly/itemdelivery/internal/evaluator"

// Settings is the delivery policy: a flat set of switches controlling which
// candidate actions are permitted and in which phase. Settings are supplied
// externally and never mutated by the engine.
type Settings struct {
	AllowClose                   bool
	AllowReinitWhenInteracting   bool
	AllowReinitWhenClosed        bool
	AllowResetWhenInteracting    bool
	AllowResetWhenClosed         bool
	AllowSolutionWhenInteracting bool
	AllowSolutionWhenClosed      bool
	AllowPlayback                bool
	AllowResult                  bool
	AllowSource                  bool

	// AuthorMode enables authoring diagnostics in rendered views.
	AuthorMode bool
	// Prompt is an optional prompt shown alongside the item.
	Prompt string
}

// Delivery is the immutable configuration a session is created against:
// one item plus its delivery policy.
type Delivery struct {
	ID       string
	Item     evaluator.ItemDefinition
	Settings Settings
}
