// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triage

import "github.com/pdiddy/triage-engine/pkg/types"

// questionTemplates maps clarify reason codes to the questions returned
// with the decision. Deliberately static text: generating prose
// justifications is a presentation concern, not the engine's.
var questionTemplates = map[types.ReasonCode][]string{
	types.ReasonEmptyInput: {
		"What work is being requested? The description was empty.",
	},
	types.ReasonLowClarity: {
		"What specific outcome should this task produce?",
		"Which system, service, or component does it touch?",
		"How will we know the task is done?",
	},
	types.ReasonAlignmentLow: {
		"How does this task relate to currently tracked work?",
		"Can you add context on why this belongs in the backlog now?",
	},
	types.ReasonProviderUnavailable: {
		"The similarity service was unavailable; please resubmit shortly.",
	},
}

// Questions returns the clarification questions for the given reason
// codes, in reason order.
func Questions(reasons []types.ReasonCode) []string {
	var out []string
	for _, r := range reasons {
		out = append(out, questionTemplates[r]...)
	}
	return out
}
