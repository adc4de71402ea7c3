package domain

// EntityKind distinguishes the two scheduling targets. An inspection or
// document belongs to a property or to a block, never both.
type EntityKind string

const (
	EntityProperty EntityKind = "property"
	EntityBlock    EntityKind = "block"
)

func (k EntityKind) IsValid() bool {
	return k == EntityProperty || k == EntityBlock
}

func (k EntityKind) String() string { return string(k) }

// InspectionStatus is the lifecycle status of an inspection instance.
type InspectionStatus string

const (
	InspectionDraft      InspectionStatus = "draft"
	InspectionScheduled  InspectionStatus = "scheduled"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
)

func (s InspectionStatus) IsValid() bool {
	switch s {
	case InspectionDraft, InspectionScheduled, InspectionInProgress, InspectionCompleted:
		return true
	}
	return false
}

func (s InspectionStatus) String() string { return string(s) }

type Property struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Block struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// InspectionTemplate defines a recurring inspection requirement. Templates
// are soft-disabled via Active and never deleted while instances reference
// them.
type InspectionTemplate struct {
	ID        string     `json:"id"`
	OrgID     string     `json:"org_id"`
	Name      string     `json:"name"`
	Scope     EntityKind `json:"scope" enum:"property,block"`
	Active    bool       `json:"active"`
	CreatedAt string     `json:"created_at" format:"date-time"`
}

// InspectionInstance is one concrete inspection scheduled against an entity.
// ScheduledDate and CompletedDate are date-only (2006-01-02).
type InspectionInstance struct {
	ID             string           `json:"id"`
	TemplateID     string           `json:"template_id"`
	EntityKind     EntityKind       `json:"entity_kind" enum:"property,block"`
	EntityID       string           `json:"entity_id"`
	InspectionType string           `json:"inspection_type"`
	ScheduledDate  string           `json:"scheduled_date" format:"date"`
	CompletedDate  *string          `json:"completed_date,omitempty" format:"date"`
	Status         InspectionStatus `json:"status" enum:"draft,scheduled,in_progress,completed"`
	CreatedAt      string           `json:"created_at" format:"date-time"`
}

// ComplianceDocument is a dated compliance artifact (gas certificate,
// insurance policy, ...). A nil ExpiryDate means permanently valid. When
// multiple documents of one type exist for an entity, the most recently
// created one is authoritative; older ones are historical.
type ComplianceDocument struct {
	ID           string     `json:"id"`
	OrgID        string     `json:"org_id"`
	EntityKind   EntityKind `json:"entity_kind,omitempty" enum:"property,block"`
	EntityID     string     `json:"entity_id,omitempty"`
	DocumentType string     `json:"document_type"`
	ExpiryDate   *string    `json:"expiry_date,omitempty" format:"date"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
