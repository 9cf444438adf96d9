// ABOUTME: Flattens one trace event into ordered display steps
// ABOUTME: Traversal order is fixed: pre-processing, orchestration sub-fields, post-processing

package trace

// Fallbacks used when an invocation input omits its query or API path.
const (
	UnknownQuery = "Unknown query"
	UnknownAPI   = "Unknown API"
)

// stepText is a fixed (description, details) pair. An empty details means none.
type stepText struct {
	description string
	details     string
}

var (
	preProcessingStep  = stepText{"Pre-processing", "Contextualizing and categorizing inputs"}
	postProcessingStep = stepText{"Post-processing", "Shaping the final response"}
)

var modelInvocationSteps = map[string]stepText{
	PromptTypePreProcessing:                   {"Pre-processing step", "Preparing input for processing"},
	PromptTypeOrchestration:                   {"Orchestration step", "Planning next actions"},
	PromptTypeKnowledgeBaseResponseGeneration: {"Knowledge Base Response", "Generating response from knowledge base"},
	PromptTypePostProcessing:                  {"Post-processing", "Finalizing response"},
}

var observationSteps = map[string]stepText{
	ObservationTypeActionGroup:   {description: "Processing Action Group Output"},
	ObservationTypeKnowledgeBase: {description: "Processing Knowledge Base Results"},
	ObservationTypeFinish:        {description: "Generating Final Response"},
}

// Normalize flattens ev into display steps. It returns nil when ev has no
// trace wrapper or no recognized sections.
func Normalize(ev *Event) []Step {
	if ev == nil || ev.Trace == nil {
		return nil
	}

	var steps []Step
	t := ev.Trace

	if t.PreProcessing != nil {
		steps = append(steps, preProcessingStep.step())
	}

	if o := t.Orchestration; o != nil {
		steps = appendOrchestration(steps, o)
	}

	if t.PostProcessing != nil {
		steps = append(steps, postProcessingStep.step())
	}

	return steps
}

// NormalizeAll normalizes each event and concatenates the steps in order.
func NormalizeAll(events []*Event) []Step {
	var steps []Step
	for _, ev := range events {
		steps = append(steps, Normalize(ev)...)
	}
	return steps
}

// appendOrchestration appends the steps for each orchestration sub-field that is present.
func appendOrchestration(steps []Step, o *Orchestration) []Step {
	if in := o.ModelInvocationInput; in != nil && in.Type != nil {
		if st, ok := modelInvocationSteps[*in.Type]; ok {
			steps = append(steps, st.step())
		}
	}

	if r := o.Rationale; r != nil && r.Text != nil && *r.Text != "" {
		steps = append(steps, newStep("Reasoning", *r.Text))
	}

	if in := o.InvocationInput; in != nil && in.InvocationType != nil {
		switch *in.InvocationType {
		case InvocationTypeKnowledgeBase:
			query := UnknownQuery
			if kb := in.KnowledgeBaseLookupInput; kb != nil && kb.Text != nil {
				query = *kb.Text
			}
			steps = append(steps, newStep("Knowledge Base Search", "Query: "+query))
		case InvocationTypeActionGroup:
			api := UnknownAPI
			if ag := in.ActionGroupInvocationInput; ag != nil && ag.APIPath != nil {
				api = *ag.APIPath
			}
			steps = append(steps, newStep("Action Group Invocation", "API: "+api))
		}
	}

	if obs := o.Observation; obs != nil && obs.Type != nil {
		if st, ok := observationSteps[*obs.Type]; ok {
			steps = append(steps, st.step())
		}
	}

	return steps
}

// step builds a Step with its own details pointer so callers cannot alter the tables.
func (s stepText) step() Step {
	if s.details == "" {
		return Step{Description: s.description}
	}
	return newStep(s.description, s.details)
}

func newStep(description, details string) Step {
	return Step{Description: description, Details: &details}
}
