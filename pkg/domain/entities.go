// Package domain defines the CRM record types, enumerations, error taxonomy
// and rule evaluation primitives shared by crmcore.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies a record collection in the store.
type EntityType string

// Supported collections. The value doubles as the store-wide collection key.
const (
	// EntityLead identifies the leads collection (show and industry variants).
	EntityLead EntityType = "leads"
	// EntityContact identifies the contacts collection.
	EntityContact EntityType = "contacts"
	// EntityAccount identifies the accounts collection.
	EntityAccount EntityType = "accounts"
	// EntityDeal identifies the deals collection.
	EntityDeal EntityType = "deals"
	// EntityTask identifies the tasks collection.
	EntityTask EntityType = "tasks"
)

var entityTypes = []EntityType{EntityLead, EntityContact, EntityAccount, EntityDeal, EntityTask}

// EntityTypes returns every supported collection in display order.
func EntityTypes() []EntityType {
	return append([]EntityType(nil), entityTypes...)
}

// ParseEntityType resolves a collection name.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range entityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", InvalidArgumentError{Field: "kind", Value: s, Reason: "unknown collection"}
}

// DateLayout is the wire format for calendar dates without a time component.
const DateLayout = "2006-01-02"

// Base contains the identity and timestamps shared by every record.
type Base struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Meta exposes the identity block so stores can assign IDs and timestamps.
func (b *Base) Meta() *Base { return b }

// Record is implemented by every entity pointer type held in a collection.
// The store treats records opaquely; entity-specific behaviour lives here.
type Record interface {
	Meta() *Base
	Kind() EntityType
	// IDPrefix is the display prefix for generated identifiers.
	IDPrefix() string
	// SearchFields lists the text values matched by free-text search.
	SearchFields() []string
	// FieldValue renders a field for exact-match filtering.
	FieldValue(field string) (string, bool)
	// ApplyFields merges a partial record, leaving absent fields untouched.
	ApplyFields(fields Fields) error
	Validate() error
	Clone() Record
}

// NewRecord builds an empty record of the given kind with creation defaults
// applied. Leads require a "variant" entry in fields.
func NewRecord(kind EntityType, fields Fields) (Record, error) {
	switch kind {
	case EntityLead:
		raw, ok, err := fields.String(kind, "variant")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, InvalidArgumentError{Entity: kind, Field: "variant", Reason: "required"}
		}
		variant := LeadVariant(raw)
		if !variant.Valid() {
			return nil, InvalidArgumentError{Entity: kind, Field: "variant", Value: raw, Reason: "unknown variant"}
		}
		return NewLead(variant), nil
	case EntityContact:
		return &Contact{}, nil
	case EntityAccount:
		return &Account{Status: AccountStatusActive}, nil
	case EntityDeal:
		return &Deal{Stage: StageProspecting}, nil
	case EntityTask:
		return &Task{Priority: PriorityMedium, Status: TaskStatusOpen}, nil
	default:
		return nil, InvalidArgumentError{Field: "kind", Value: string(kind), Reason: "unknown collection"}
	}
}

// Contact is a person record not tied to a lead pipeline.
type Contact struct {
	Base         `yaml:",inline"`
	Name         string `json:"name" yaml:"name"`
	Email        string `json:"email" yaml:"email"`
	Phone        string `json:"phone" yaml:"phone"`
	Company      string `json:"company" yaml:"company"`
	Owner        string `json:"owner" yaml:"owner"`
	LastActivity string `json:"last_activity" yaml:"last_activity"`
	Tag          string `json:"tag" yaml:"tag"`
}

// Kind implements Record.
func (c *Contact) Kind() EntityType { return EntityContact }

// IDPrefix implements Record.
func (c *Contact) IDPrefix() string { return "C" }

// SearchFields implements Record.
func (c *Contact) SearchFields() []string { return []string{c.Name, c.Company, c.Email} }

// FieldValue implements Record.
func (c *Contact) FieldValue(field string) (string, bool) {
	switch field {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "email":
		return c.Email, true
	case "phone":
		return c.Phone, true
	case "company":
		return c.Company, true
	case "owner":
		return c.Owner, true
	case "tag":
		return c.Tag, true
	case "last_activity":
		return c.LastActivity, true
	}
	return "", false
}

// ApplyFields implements Record.
func (c *Contact) ApplyFields(fields Fields) error {
	return fields.apply(EntityContact, map[string]any{
		"name":          &c.Name,
		"email":         &c.Email,
		"phone":         &c.Phone,
		"company":       &c.Company,
		"owner":         &c.Owner,
		"last_activity": dateField{&c.LastActivity},
		"tag":           &c.Tag,
	})
}

// Validate implements Record.
func (c *Contact) Validate() error {
	if c.Name == "" {
		return InvalidArgumentError{Entity: EntityContact, Field: "name", Reason: "required"}
	}
	return validateDate(EntityContact, "last_activity", c.LastActivity)
}

// Clone implements Record.
func (c *Contact) Clone() Record {
	cp := *c
	return &cp
}

// Account is a company the sales team manages.
type Account struct {
	Base      `yaml:",inline"`
	Name      string        `json:"name" yaml:"name"`
	Industry  string        `json:"industry" yaml:"industry"`
	Location  string        `json:"location" yaml:"location"`
	Owner     string        `json:"owner" yaml:"owner"`
	Revenue   int64         `json:"revenue" yaml:"revenue"`
	Employees int64         `json:"employees" yaml:"employees"`
	Status    AccountStatus `json:"status" yaml:"status"`
}

// Kind implements Record.
func (a *Account) Kind() EntityType { return EntityAccount }

// IDPrefix implements Record.
func (a *Account) IDPrefix() string { return "A" }

// SearchFields implements Record.
func (a *Account) SearchFields() []string { return []string{a.Name, a.Industry} }

// FieldValue implements Record.
func (a *Account) FieldValue(field string) (string, bool) {
	switch field {
	case "id":
		return a.ID, true
	case "name":
		return a.Name, true
	case "industry":
		return a.Industry, true
	case "location":
		return a.Location, true
	case "owner":
		return a.Owner, true
	case "status":
		return string(a.Status), true
	case "revenue":
		return fmt.Sprint(a.Revenue), true
	case "employees":
		return fmt.Sprint(a.Employees), true
	}
	return "", false
}

// ApplyFields implements Record.
func (a *Account) ApplyFields(fields Fields) error {
	return fields.apply(EntityAccount, map[string]any{
		"name":      &a.Name,
		"industry":  &a.Industry,
		"location":  &a.Location,
		"owner":     &a.Owner,
		"revenue":   &a.Revenue,
		"employees": &a.Employees,
		"status":    (*string)(&a.Status),
	})
}

// Validate implements Record.
func (a *Account) Validate() error {
	if a.Name == "" {
		return InvalidArgumentError{Entity: EntityAccount, Field: "name", Reason: "required"}
	}
	if !a.Status.Valid() {
		return InvalidArgumentError{Entity: EntityAccount, Field: "status", Value: string(a.Status), Reason: "unknown account status"}
	}
	return nil
}

// Clone implements Record.
func (a *Account) Clone() Record {
	cp := *a
	return &cp
}

// Deal is an opportunity tracked through the sales pipeline.
type Deal struct {
	Base        `yaml:",inline"`
	Name        string    `json:"name" yaml:"name"`
	Account     string    `json:"account" yaml:"account"`
	Amount      int64     `json:"amount" yaml:"amount"`
	CloseDate   string    `json:"close_date" yaml:"close_date"`
	Stage       DealStage `json:"stage" yaml:"stage"`
	Owner       string    `json:"owner" yaml:"owner"`
	LeadSource  string    `json:"lead_source" yaml:"lead_source"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Kind implements Record.
func (d *Deal) Kind() EntityType { return EntityDeal }

// IDPrefix implements Record.
func (d *Deal) IDPrefix() string { return "D" }

// SearchFields implements Record.
func (d *Deal) SearchFields() []string { return []string{d.Name, d.Account, d.Owner} }

// FieldValue implements Record.
func (d *Deal) FieldValue(field string) (string, bool) {
	switch field {
	case "id":
		return d.ID, true
	case "name":
		return d.Name, true
	case "account":
		return d.Account, true
	case "amount":
		return fmt.Sprint(d.Amount), true
	case "close_date":
		return d.CloseDate, true
	case "stage":
		return string(d.Stage), true
	case "owner":
		return d.Owner, true
	case "lead_source":
		return d.LeadSource, true
	case "description":
		return d.Description, true
	}
	return "", false
}

// ApplyFields implements Record.
func (d *Deal) ApplyFields(fields Fields) error {
	return fields.apply(EntityDeal, map[string]any{
		"name":        &d.Name,
		"account":     &d.Account,
		"amount":      &d.Amount,
		"close_date":  dateField{&d.CloseDate},
		"stage":       (*string)(&d.Stage),
		"owner":       &d.Owner,
		"lead_source": &d.LeadSource,
		"description": &d.Description,
	})
}

// Validate implements Record.
func (d *Deal) Validate() error {
	if d.Name == "" {
		return InvalidArgumentError{Entity: EntityDeal, Field: "name", Reason: "required"}
	}
	if !d.Stage.Valid() {
		return InvalidArgumentError{Entity: EntityDeal, Field: "stage", Value: string(d.Stage), Reason: "unknown deal stage"}
	}
	return validateDate(EntityDeal, "close_date", d.CloseDate)
}

// Clone implements Record.
func (d *Deal) Clone() Record {
	cp := *d
	return &cp
}

// Task is a follow-up item attached loosely to another record kind.
type Task struct {
	Base        `yaml:",inline"`
	Subject     string       `json:"subject" yaml:"subject"`
	RelatedTo   RelatedKind  `json:"related_to" yaml:"related_to"`
	DueDate     string       `json:"due_date" yaml:"due_date"`
	Priority    TaskPriority `json:"priority" yaml:"priority"`
	Status      TaskStatus   `json:"status" yaml:"status"`
	AssignedTo  string       `json:"assigned_to" yaml:"assigned_to"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// Kind implements Record.
func (t *Task) Kind() EntityType { return EntityTask }

// IDPrefix implements Record.
func (t *Task) IDPrefix() string { return "T" }

// SearchFields implements Record.
func (t *Task) SearchFields() []string { return []string{t.Subject} }

// FieldValue implements Record.
func (t *Task) FieldValue(field string) (string, bool) {
	switch field {
	case "id":
		return t.ID, true
	case "subject":
		return t.Subject, true
	case "related_to":
		return string(t.RelatedTo), true
	case "due_date":
		return t.DueDate, true
	case "priority":
		return string(t.Priority), true
	case "status":
		return string(t.Status), true
	case "assigned_to", "owner":
		return t.AssignedTo, true
	case "description":
		return t.Description, true
	}
	return "", false
}

// ApplyFields implements Record.
func (t *Task) ApplyFields(fields Fields) error {
	return fields.apply(EntityTask, map[string]any{
		"subject":     &t.Subject,
		"related_to":  (*string)(&t.RelatedTo),
		"due_date":    dateField{&t.DueDate},
		"priority":    (*string)(&t.Priority),
		"status":      (*string)(&t.Status),
		"assigned_to": &t.AssignedTo,
		"description": &t.Description,
	})
}

// Validate implements Record.
func (t *Task) Validate() error {
	if t.Subject == "" {
		return InvalidArgumentError{Entity: EntityTask, Field: "subject", Reason: "required"}
	}
	if t.RelatedTo != "" && !t.RelatedTo.Valid() {
		return InvalidArgumentError{Entity: EntityTask, Field: "related_to", Value: string(t.RelatedTo), Reason: "unknown related kind"}
	}
	if !t.Priority.Valid() {
		return InvalidArgumentError{Entity: EntityTask, Field: "priority", Value: string(t.Priority), Reason: "unknown priority"}
	}
	if !t.Status.Valid() {
		return InvalidArgumentError{Entity: EntityTask, Field: "status", Value: string(t.Status), Reason: "unknown task status"}
	}
	return validateDate(EntityTask, "due_date", t.DueDate)
}

// Clone implements Record.
func (t *Task) Clone() Record {
	cp := *t
	return &cp
}

func validateDate(entity EntityType, field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return InvalidArgumentError{Entity: entity, Field: field, Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return nil
}
