// Package domain holds the shared entity types for the support backend:
// tenants, sessions, messages, billing events, knowledge documents and
// their retrieval-time chunk payloads. Every row is scoped to a tenant.
package domain

import "time"

// Tenant is the isolation key. Created externally; read-only on the hot path.
type Tenant struct {
	ID           string
	DisplayName  string
	APIKeyHash   string
	Vertical     string
	Config       TenantConfig
	Active       bool
}

// TenantConfig holds the per-tenant behavioral knobs consulted by agent
// turn orchestration and escalation.
type TenantConfig struct {
	PersonaName             string
	PersonaDescription      string
	CompanyName             string
	Vertical                string
	AllowedTopics           []string
	BlockedTopics           []string
	EscalationThreshold     float64
	MaxTurnsBeforeEscalation int
	EscalationWebhookURL    string
	DataWebhookURL          string
	ExternalUserID          string
}

// DefaultTenantConfig returns the documented defaults for fields a tenant
// has not set explicitly.
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		EscalationThreshold:      0.55,
		MaxTurnsBeforeEscalation: 10,
	}
}

// SessionStatus is the session's finite state. Transitions are monotonic:
// active -> resolved | active -> escalated. Never back.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionResolved   SessionStatus = "resolved"
	SessionEscalated  SessionStatus = "escalated"
)

// Session is a bounded conversation between an end user and the agent.
type Session struct {
	ID               string
	TenantID         string
	ExternalUserID   string
	StartedAt        time.Time
	EndedAt          *time.Time
	Status           SessionStatus
	EscalationReason string
}

// MessageRole distinguishes user, assistant and system turns.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// IntentType is the outcome of the combined classify-and-respond call.
type IntentType string

const (
	IntentConversational IntentType = "conversational"
	IntentDomainQuery    IntentType = "domain_query"
	IntentOutOfScope     IntentType = "out_of_scope"
)

// SourceChunk records where a grounded answer's supporting text came from.
type SourceChunk struct {
	ChunkID  string
	Document string
	Section  string
}

// Message is one immutable utterance persisted within a session.
type Message struct {
	ID               string
	SessionID        string
	TenantID         string
	Role             MessageRole
	Content          string
	IntentType       *IntentType
	SourceChunks     []SourceChunk
	ConfidenceScore  *float64
	EscalationFlag   bool
	InputTokens      int
	OutputTokens     int
	LatencyMs        int64
	CreatedAt        time.Time
}

// BillingEventType enumerates the durable metering event kinds.
type BillingEventType string

const (
	BillingResolved              BillingEventType = "resolved"
	BillingEscalated             BillingEventType = "escalated"
	BillingTimeout               BillingEventType = "timeout"
	BillingEscalationWebhookFail BillingEventType = "escalation_webhook_failed"
)

// BillingEvent is the durable record of one session's metered usage.
type BillingEvent struct {
	ID               string
	TenantID         string
	SessionID        string
	EventType        BillingEventType
	TotalInputTokens int64
	TotalOutputTokens int64
	TotalMessages    int64
	BilledAt         time.Time
}

// FileType enumerates the accepted tenant-upload formats.
type FileType string

const (
	FilePDF  FileType = "pdf"
	FileDOCX FileType = "docx"
	FileHTML FileType = "html"
	FileTXT  FileType = "txt"
	FileCSV  FileType = "csv"
)

// DocumentStatus is the knowledge document's finite ingestion state.
// processing -> ready | failed. No transitions out of terminal states.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// KnowledgeDocument is a logical unit of a tenant's corpus.
type KnowledgeDocument struct {
	ID           string
	TenantID     string
	Filename     string
	FileType     FileType
	Version      int
	IsActive     bool
	IngestedAt   time.Time
	ChunkCount   *int
	Status       DocumentStatus
	ErrorMessage *string
	Checksum     string
}

// ElementType enumerates the structural parse element kinds produced by
// the (externally owned) document parser.
type ElementType string

const (
	ElementTitle         ElementType = "Title"
	ElementNarrativeText ElementType = "NarrativeText"
	ElementTable         ElementType = "Table"
	ElementListItem      ElementType = "ListItem"
)

// VectorType distinguishes the three parallel embedding views a chunk may
// produce in the vector store.
type VectorType string

const (
	VectorRaw          VectorType = "raw"
	VectorSummary      VectorType = "summary"
	VectorHypothetical VectorType = "hypothetical"
)

// ChunkPayload is the retrieval unit stored in the tenant's vector
// collection. Up to three points (one per VectorType) share a ChunkID.
type ChunkPayload struct {
	ChunkID                string
	DocumentID              string
	TenantID                string
	Filename                string
	DocumentVersion         int
	IsLatestVersion         bool
	SectionHeading          string
	ElementType             ElementType
	ChunkText               string
	CharCount               int
	TokenCount              int
	Summary                 string
	HypotheticalQuestions   []string
	VectorType              VectorType
	IngestedAt              time.Time
}
