// ABOUTME: Trace event types mirroring the agent's optional-field trace payload
// ABOUTME: Presence of a section is a non-nil pointer; absence is normal

package trace

// Prompt types reported in a model invocation input.
const (
	PromptTypePreProcessing                   = "PRE_PROCESSING"
	PromptTypeOrchestration                   = "ORCHESTRATION"
	PromptTypeKnowledgeBaseResponseGeneration = "KNOWLEDGE_BASE_RESPONSE_GENERATION"
	PromptTypePostProcessing                  = "POST_PROCESSING"
)

// Invocation types reported in an orchestration invocation input.
const (
	InvocationTypeKnowledgeBase = "KNOWLEDGE_BASE"
	InvocationTypeActionGroup   = "ACTION_GROUP"
)

// Observation types reported after an orchestration step.
const (
	ObservationTypeActionGroup   = "ACTION_GROUP"
	ObservationTypeKnowledgeBase = "KNOWLEDGE_BASE"
	ObservationTypeFinish        = "FINISH"
)

// Event is one trace payload received from the agent.
type Event struct {
	AgentID      string   `json:"agentId,omitempty"`
	AgentAliasID string   `json:"agentAliasId,omitempty"`
	AgentVersion string   `json:"agentVersion,omitempty"`
	SessionID    string   `json:"sessionId,omitempty"`
	Trace        *Wrapper `json:"trace,omitempty"`
}

// Wrapper is the top-level trace section holding the phase sub-sections.
type Wrapper struct {
	PreProcessing  *Phase         `json:"preProcessingTrace,omitempty"`
	Orchestration  *Orchestration `json:"orchestrationTrace,omitempty"`
	PostProcessing *Phase         `json:"postProcessingTrace,omitempty"`
}

// Phase is a pre- or post-processing section.
type Phase struct {
	ModelInvocationInput *ModelInvocationInput `json:"modelInvocationInput,omitempty"`
}

// Orchestration is the orchestration section. Each field is checked on its own.
type Orchestration struct {
	ModelInvocationInput *ModelInvocationInput `json:"modelInvocationInput,omitempty"`
	Rationale            *Rationale            `json:"rationale,omitempty"`
	InvocationInput      *InvocationInput      `json:"invocationInput,omitempty"`
	Observation          *Observation          `json:"observation,omitempty"`
}

// ModelInvocationInput describes the prompt sent to the foundation model.
type ModelInvocationInput struct {
	Type *string `json:"type,omitempty"`
	Text *string `json:"text,omitempty"`
}

// Rationale is the agent's reasoning for its next step.
type Rationale struct {
	Text *string `json:"text,omitempty"`
}

// InvocationInput describes a knowledge base lookup or action group call.
type InvocationInput struct {
	InvocationType             *string                     `json:"invocationType,omitempty"`
	KnowledgeBaseLookupInput   *KnowledgeBaseLookupInput   `json:"knowledgeBaseLookupInput,omitempty"`
	ActionGroupInvocationInput *ActionGroupInvocationInput `json:"actionGroupInvocationInput,omitempty"`
}

// KnowledgeBaseLookupInput is the query sent to a knowledge base.
type KnowledgeBaseLookupInput struct {
	KnowledgeBaseID *string `json:"knowledgeBaseId,omitempty"`
	Text            *string `json:"text,omitempty"`
}

// ActionGroupInvocationInput is the API call made through an action group.
type ActionGroupInvocationInput struct {
	ActionGroupName *string `json:"actionGroupName,omitempty"`
	APIPath         *string `json:"apiPath,omitempty"`
	Verb            *string `json:"verb,omitempty"`
	Function        *string `json:"function,omitempty"`
}

// Observation is the result the agent observed after a step.
type Observation struct {
	Type *string `json:"type,omitempty"`
}

// Step is one flattened, human-readable trace entry.
type Step struct {
	Description string  `json:"description"`
	Details     *string `json:"details"`
}

// HasDetails reports whether the step carries non-empty details.
func (s Step) HasDetails() bool {
	return s.Details != nil && *s.Details != ""
}

// DetailsText returns the details or "" when there are none.
func (s Step) DetailsText() string {
	if s.Details == nil {
		return ""
	}
	return *s.Details
}
