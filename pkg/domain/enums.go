package domain

// LeadSource enumerates the channels a lead can arrive through.
type LeadSource string

// Canonical lead sources.
const (
	LeadSourceEmail    LeadSource = "Email"
	LeadSourceLinkedIn LeadSource = "LinkedIn"
)

// LeadStatus enumerates lead qualification states.
type LeadStatus string

// Canonical lead statuses.
const (
	LeadStatusNew       LeadStatus = "New"
	LeadStatusContacted LeadStatus = "Contacted"
	LeadStatusQualified LeadStatus = "Qualified"
	LeadStatusLost      LeadStatus = "Lost"
)

// AccountStatus enumerates account lifecycle states.
type AccountStatus string

// Canonical account statuses.
const (
	AccountStatusActive   AccountStatus = "Active"
	AccountStatusInactive AccountStatus = "Inactive"
)

// DealStage is the pipeline phase of a deal.
type DealStage string

// Pipeline stages in kanban column order.
const (
	StageProspecting   DealStage = "Prospecting"
	StageQualification DealStage = "Qualification"
	StageNegotiation   DealStage = "Negotiation"
	StageClosedWon     DealStage = "Closed Won"
	StageClosedLost    DealStage = "Closed Lost"
)

// TaskPriority enumerates task urgency.
type TaskPriority string

// Canonical task priorities.
const (
	PriorityHigh   TaskPriority = "High"
	PriorityMedium TaskPriority = "Medium"
	PriorityLow    TaskPriority = "Low"
)

// TaskStatus enumerates task workflow states.
type TaskStatus string

// Canonical task statuses.
const (
	TaskStatusOpen       TaskStatus = "Open"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusOverdue    TaskStatus = "Overdue"
)

// RelatedKind names the record kind a task refers to. References are free
// text labels; nothing checks that the target exists.
type RelatedKind string

// Canonical related kinds.
const (
	RelatedLead    RelatedKind = "Lead"
	RelatedContact RelatedKind = "Contact"
	RelatedDeal    RelatedKind = "Deal"
	RelatedAccount RelatedKind = "Account"
)

var (
	leadSources     = []LeadSource{LeadSourceEmail, LeadSourceLinkedIn}
	leadStatuses    = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost}
	accountStatuses = []AccountStatus{AccountStatusActive, AccountStatusInactive}
	dealStages      = []DealStage{StageProspecting, StageQualification, StageNegotiation, StageClosedWon, StageClosedLost}
	taskPriorities  = []TaskPriority{PriorityHigh, PriorityMedium, PriorityLow}
	taskStatuses    = []TaskStatus{TaskStatusOpen, TaskStatusInProgress, TaskStatusCompleted, TaskStatusOverdue}
	relatedKinds    = []RelatedKind{RelatedLead, RelatedContact, RelatedDeal, RelatedAccount}
)

func oneOf[T ~string](v T, allowed []T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Valid reports whether s is a canonical lead source.
func (s LeadSource) Valid() bool { return oneOf(s, leadSources) }

// Valid reports whether s is a canonical lead status.
func (s LeadStatus) Valid() bool { return oneOf(s, leadStatuses) }

// Valid reports whether s is a canonical account status.
func (s AccountStatus) Valid() bool { return oneOf(s, accountStatuses) }

// Valid reports whether s is a pipeline stage.
func (s DealStage) Valid() bool { return oneOf(s, dealStages) }

// Valid reports whether p is a canonical priority.
func (p TaskPriority) Valid() bool { return oneOf(p, taskPriorities) }

// Valid reports whether s is a canonical task status.
func (s TaskStatus) Valid() bool { return oneOf(s, taskStatuses) }

// Valid reports whether k is a canonical related kind.
func (k RelatedKind) Valid() bool { return oneOf(k, relatedKinds) }

// DealStages returns the pipeline stages in kanban order.
func DealStages() []DealStage { return append([]DealStage(nil), dealStages...) }

// ParseDealStage validates a stage name.
func ParseDealStage(s string) (DealStage, error) {
	stage := DealStage(s)
	if !stage.Valid() {
		return "", InvalidArgumentError{Entity: EntityDeal, Field: "stage", Value: s, Reason: "unknown deal stage"}
	}
	return stage, nil
}

// StatusField returns the name of the status-like field for a collection, the
// one bulk status changes write to. Contacts have none.
func StatusField(kind EntityType) (string, bool) {
	switch kind {
	case EntityLead, EntityAccount, EntityTask:
		return "status", true
	case EntityDeal:
		return "stage", true
	}
	return "", false
}

// OwnerField returns the name of the ownership field for a collection.
// Leads carry no owner.
func OwnerField(kind EntityType) (string, bool) {
	switch kind {
	case EntityContact, EntityAccount, EntityDeal:
		return "owner", true
	case EntityTask:
		return "assigned_to", true
	}
	return "", false
}
