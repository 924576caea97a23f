package model

// FlowKind names a multi-step dialogue.
type FlowKind string

const (
	FlowAddCredential FlowKind = "add_credential"
	FlowEditField     FlowKind = "edit_field"
	FlowAddChannel    FlowKind = "add_channel"
	FlowPlaceOrder    FlowKind = "place_order"
)

// Awaiting is the input a flow is currently waiting for.
type Awaiting string

const (
	AwaitingNothing       Awaiting = "idle"
	AwaitingAPIURL        Awaiting = "awaiting_api_url"
	AwaitingAPIKey        Awaiting = "awaiting_api_key"
	AwaitingServiceID     Awaiting = "awaiting_service_id"
	AwaitingQuantity      Awaiting = "awaiting_quantity"
	AwaitingChannel       Awaiting = "awaiting_channel"
	AwaitingEditValue     Awaiting = "awaiting_edit_value"
	AwaitingOrderLink     Awaiting = "awaiting_order_link"
	AwaitingOrderQuantity Awaiting = "awaiting_order_quantity"
)

// Keys of ConversationState.Collected.
const (
	CollectedAPIURL    = "api_url"
	CollectedAPIKey    = "api_key"
	CollectedServiceID = "service_id"
	CollectedOrderLink = "order_link"
)

var flowSteps = map[FlowKind][]Awaiting{
	FlowAddCredential: {AwaitingAPIURL, AwaitingAPIKey, AwaitingServiceID, AwaitingQuantity},
	FlowEditField:     {AwaitingEditValue},
	FlowAddChannel:    {AwaitingChannel},
	FlowPlaceOrder:    {AwaitingOrderLink, AwaitingOrderQuantity},
}

// ConversationState holds one user's progress in a flow. A user has at most one.
type ConversationState struct {
	Flow      FlowKind          `json:"flow"`
	Field     CredentialField   `json:"field,omitempty"` // only for FlowEditField
	Step      int               `json:"step"`
	Collected map[string]string `json:"collected"`
}

// NewConversationState starts flow at its first step.
func NewConversationState(flow FlowKind) *ConversationState {
	return &ConversationState{Flow: flow, Collected: map[string]string{}}
}

// NewEditState starts a single-field edit.
func NewEditState(field CredentialField) *ConversationState {
	s := NewConversationState(FlowEditField)
	s.Field = field
	return s
}

// Awaiting maps (flow, step) to the expected input.
func (s *ConversationState) Awaiting() Awaiting {
	if s == nil {
		return AwaitingNothing
	}
	steps := flowSteps[s.Flow]
	if s.Step < 0 || s.Step >= len(steps) {
		return AwaitingNothing
	}
	return steps[s.Step]
}

// IsLastStep reports whether the current step completes the flow.
func (s *ConversationState) IsLastStep() bool {
	return s != nil && s.Step == len(flowSteps[s.Flow])-1
}

// Advance records value under key and moves to the next step.
func (s *ConversationState) Advance(key, value string) {
	if s.Collected == nil {
		s.Collected = map[string]string{}
	}
	if key != "" {
		s.Collected[key] = value
	}
	s.Step++
}

// Clone deep-copies the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Collected = make(map[string]string, len(s.Collected))
	for k, v := range s.Collected {
		cp.Collected[k] = v
	}
	return &cp
}
