package domain

import "fmt"

// LeadVariant discriminates the lead union.
type LeadVariant string

// Lead variants. The ID prefix follows the variant.
const (
	LeadVariantShow     LeadVariant = "show"
	LeadVariantIndustry LeadVariant = "industry"
)

// Valid reports whether v is a known variant.
func (v LeadVariant) Valid() bool {
	return v == LeadVariantShow || v == LeadVariantIndustry
}

// ShowDetails extends a lead that originated from a trade show.
type ShowDetails struct {
	ShowName      string `json:"show_name" yaml:"show_name"`
	ShowWebsite   string `json:"show_website" yaml:"show_website"`
	ShowDate      string `json:"show_date" yaml:"show_date"`
	AttendeeCount int64  `json:"attendee_count" yaml:"attendee_count"`
	KeyPoints     string `json:"key_points" yaml:"key_points"`
}

// Lead is a prospective customer. Variant selects the extension block:
// Show is non-nil exactly when Variant is LeadVariantShow.
type Lead struct {
	Base           `yaml:",inline"`
	Variant        LeadVariant  `json:"variant" yaml:"variant"`
	ContactName    string       `json:"contact_name" yaml:"contact_name"`
	ClientEmail    string       `json:"client_email" yaml:"client_email"`
	JobTitle       string       `json:"job_title" yaml:"job_title"`
	CompanyName    string       `json:"company_name" yaml:"company_name"`
	CompanyWebsite string       `json:"company_website" yaml:"company_website"`
	CompanyCountry string       `json:"company_country" yaml:"company_country"`
	Phone          string       `json:"phone" yaml:"phone"`
	LeadSource     LeadSource   `json:"lead_source" yaml:"lead_source"`
	Status         LeadStatus   `json:"status" yaml:"status"`
	Message        string       `json:"message" yaml:"message"`
	Show           *ShowDetails `json:"show,omitempty" yaml:"show,omitempty"`
}

// NewLead returns an empty lead of the given variant with defaults applied.
func NewLead(variant LeadVariant) *Lead {
	l := &Lead{Variant: variant, LeadSource: LeadSourceEmail, Status: LeadStatusNew}
	if variant == LeadVariantShow {
		l.Show = &ShowDetails{}
	}
	return l
}

// Kind implements Record.
func (l *Lead) Kind() EntityType { return EntityLead }

// IDPrefix implements Record.
func (l *Lead) IDPrefix() string {
	if l.Variant == LeadVariantShow {
		return "SL"
	}
	return "IL"
}

// SearchFields implements Record. Show leads are also searchable by show name.
func (l *Lead) SearchFields() []string {
	if l.Show != nil {
		return []string{l.ContactName, l.CompanyName, l.Show.ShowName}
	}
	return []string{l.ContactName, l.CompanyName}
}

// FieldValue implements Record.
func (l *Lead) FieldValue(field string) (string, bool) {
	switch field {
	case "id":
		return l.ID, true
	case "variant":
		return string(l.Variant), true
	case "contact_name":
		return l.ContactName, true
	case "client_email":
		return l.ClientEmail, true
	case "job_title":
		return l.JobTitle, true
	case "company_name":
		return l.CompanyName, true
	case "company_website":
		return l.CompanyWebsite, true
	case "company_country":
		return l.CompanyCountry, true
	case "phone":
		return l.Phone, true
	case "lead_source", "source":
		return string(l.LeadSource), true
	case "status":
		return string(l.Status), true
	case "message":
		return l.Message, true
	}
	return l.showFieldValue(field)
}

// showFieldValue resolves the show extension fields. Industry leads have
// none, so filters on them never match.
func (l *Lead) showFieldValue(field string) (string, bool) {
	if l.Show == nil {
		return "", false
	}
	switch field {
	case "show_name":
		return l.Show.ShowName, true
	case "show_website":
		return l.Show.ShowWebsite, true
	case "show_date":
		return l.Show.ShowDate, true
	case "attendee_count":
		return fmt.Sprint(l.Show.AttendeeCount), true
	case "key_points":
		return l.Show.KeyPoints, true
	}
	return "", false
}

var showFields = []string{"show_name", "show_website", "show_date", "attendee_count", "key_points"}

// ApplyFields implements Record. Show-only fields are rejected on industry
// leads and the variant itself cannot change.
func (l *Lead) ApplyFields(fields Fields) error {
	if raw, ok, err := fields.String(EntityLead, "variant"); err != nil {
		return err
	} else if ok && LeadVariant(raw) != l.Variant {
		return InvalidArgumentError{Entity: EntityLead, Field: "variant", Value: raw, Reason: "variant is immutable"}
	}
	targets := map[string]any{
		"variant":         ignoredField{},
		"contact_name":    &l.ContactName,
		"client_email":    &l.ClientEmail,
		"job_title":       &l.JobTitle,
		"company_name":    &l.CompanyName,
		"company_website": &l.CompanyWebsite,
		"company_country": &l.CompanyCountry,
		"phone":           &l.Phone,
		"lead_source":     (*string)(&l.LeadSource),
		"status":          (*string)(&l.Status),
		"message":         &l.Message,
	}
	if l.Show != nil {
		targets["show_name"] = &l.Show.ShowName
		targets["show_website"] = &l.Show.ShowWebsite
		targets["show_date"] = dateField{&l.Show.ShowDate}
		targets["attendee_count"] = &l.Show.AttendeeCount
		targets["key_points"] = &l.Show.KeyPoints
	} else {
		for _, name := range showFields {
			if _, present := fields[name]; present {
				return InvalidArgumentError{Entity: EntityLead, Field: name, Reason: "only valid on show leads"}
			}
		}
	}
	return fields.apply(EntityLead, targets)
}

// Validate implements Record.
func (l *Lead) Validate() error {
	if !l.Variant.Valid() {
		return InvalidArgumentError{Entity: EntityLead, Field: "variant", Value: string(l.Variant), Reason: "unknown variant"}
	}
	if (l.Variant == LeadVariantShow) != (l.Show != nil) {
		return InvalidArgumentError{Entity: EntityLead, Field: "show", Reason: "show details must match variant"}
	}
	if l.ContactName == "" {
		return InvalidArgumentError{Entity: EntityLead, Field: "contact_name", Reason: "required"}
	}
	if !l.LeadSource.Valid() {
		return InvalidArgumentError{Entity: EntityLead, Field: "lead_source", Value: string(l.LeadSource), Reason: "unknown lead source"}
	}
	if !l.Status.Valid() {
		return InvalidArgumentError{Entity: EntityLead, Field: "status", Value: string(l.Status), Reason: "unknown lead status"}
	}
	if l.Show != nil {
		return validateDate(EntityLead, "show_date", l.Show.ShowDate)
	}
	return nil
}

// Clone implements Record.
func (l *Lead) Clone() Record {
	cp := *l
	if l.Show != nil {
		show := *l.Show
		cp.Show = &show
	}
	return &cp
}
