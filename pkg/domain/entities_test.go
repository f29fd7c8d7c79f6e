package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewRecordDefaults(t *testing.T) {
	acct, err := NewRecord(EntityAccount, nil)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	if acct.(*Account).Status != AccountStatusActive {
		t.Fatalf("expected active default, got %q", acct.(*Account).Status)
	}
	deal, _ := NewRecord(EntityDeal, nil)
	if deal.(*Deal).Stage != StageProspecting {
		t.Fatalf("expected prospecting default, got %q", deal.(*Deal).Stage)
	}
	task, _ := NewRecord(EntityTask, nil)
	if tk := task.(*Task); tk.Priority != PriorityMedium || tk.Status != TaskStatusOpen {
		t.Fatalf("unexpected task defaults %+v", tk)
	}
	if _, err := NewRecord(EntityType("widgets"), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown kind, got %v", err)
	}
}

func TestNewRecordLeadVariant(t *testing.T) {
	if _, err := NewRecord(EntityLead, Fields{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected variant to be required, got %v", err)
	}
	if _, err := NewRecord(EntityLead, Fields{"variant": "webinar"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected unknown variant rejection, got %v", err)
	}
	rec, err := NewRecord(EntityLead, Fields{"variant": LeadVariantShow})
	if err != nil {
		t.Fatalf("new show lead: %v", err)
	}
	lead := rec.(*Lead)
	if lead.Show == nil || lead.IDPrefix() != "SL" {
		t.Fatalf("show lead must carry show details and SL prefix: %+v", lead)
	}
	rec, _ = NewRecord(EntityLead, Fields{"variant": "industry"})
	if rec.(*Lead).Show != nil || rec.IDPrefix() != "IL" {
		t.Fatalf("industry lead must not carry show details")
	}
}

func TestApplyFieldsCoercion(t *testing.T) {
	acct := &Account{Status: AccountStatusActive}
	err := acct.ApplyFields(Fields{
		"name":      "Globex",
		"revenue":   float64(1500000),
		"employees": json.Number("250"),
		"status":    AccountStatusInactive,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if acct.Revenue != 1500000 || acct.Employees != 250 || acct.Status != AccountStatusInactive {
		t.Fatalf("unexpected account %+v", acct)
	}
	if err := acct.ApplyFields(Fields{"employees": "12"}); err != nil || acct.Employees != 12 {
		t.Fatalf("expected numeric string to coerce, got %v (%d)", err, acct.Employees)
	}

	cases := []struct {
		name   string
		fields Fields
	}{
		{"unknown field", Fields{"colour": "red"}},
		{"fractional int", Fields{"revenue": 1.5}},
		{"string into int", Fields{"revenue": "lots"}},
		{"int into string", Fields{"name": 42}},
		{"null", Fields{"name": nil}},
		{"id", Fields{"id": "A1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := (&Account{}).ApplyFields(tc.fields)
			var invalid InvalidArgumentError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidArgumentError, got %v", err)
			}
		})
	}
}

func TestApplyFieldsDates(t *testing.T) {
	deal := &Deal{}
	if err := deal.ApplyFields(Fields{"close_date": "2025-13-40"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected malformed date rejection, got %v", err)
	}
	when := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	if err := deal.ApplyFields(Fields{"close_date": when}); err != nil || deal.CloseDate != "2025-03-09" {
		t.Fatalf("expected time value to format as date, got %v %q", err, deal.CloseDate)
	}
}

func TestLeadApplyFields(t *testing.T) {
	industry := NewLead(LeadVariantIndustry)
	if err := industry.ApplyFields(Fields{"show_name": "Expo"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("show fields must be rejected on industry leads, got %v", err)
	}
	if err := industry.ApplyFields(Fields{"variant": "show"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("variant change must be rejected, got %v", err)
	}
	if err := industry.ApplyFields(Fields{"variant": "industry", "contact_name": "Ada"}); err != nil {
		t.Fatalf("restating the variant should be accepted: %v", err)
	}

	show := NewLead(LeadVariantShow)
	err := show.ApplyFields(Fields{"contact_name": "Grace", "show_name": "CES", "attendee_count": 120, "show_date": "2025-01-07"})
	if err != nil {
		t.Fatalf("apply show fields: %v", err)
	}
	if show.Show.ShowName != "CES" || show.Show.AttendeeCount != 120 {
		t.Fatalf("unexpected show details %+v", show.Show)
	}
	if got := show.SearchFields(); len(got) != 3 || got[2] != "CES" {
		t.Fatalf("show leads search by show name, got %v", got)
	}
	if v, ok := show.FieldValue("variant"); !ok || v != "show" {
		t.Fatalf("variant filter value %q %v", v, ok)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"valid deal", &Deal{Name: "Renewal", Stage: StageNegotiation, CloseDate: "2025-06-01"}, false},
		{"bad stage", &Deal{Name: "Renewal", Stage: "Won-ish"}, true},
		{"missing name", &Deal{Stage: StageProspecting}, true},
		{"bad priority", &Task{Subject: "Call", Priority: "Urgent", Status: TaskStatusOpen}, true},
		{"bad related kind", &Task{Subject: "Call", RelatedTo: "Vendor", Priority: PriorityLow, Status: TaskStatusOpen}, true},
		{"bad lead source", &Lead{Variant: LeadVariantIndustry, ContactName: "Ada", LeadSource: "Fax", Status: LeadStatusNew}, true},
		{"show variant without details", &Lead{Variant: LeadVariantShow, ContactName: "Ada", LeadSource: LeadSourceEmail, Status: LeadStatusNew}, true},
		{"bad account status", &Account{Name: "Initech", Status: "Dormant"}, true},
		{"bad contact date", &Contact{Name: "Ada", LastActivity: "yesterday"}, true},
		{"valid contact", &Contact{Name: "Ada", LastActivity: "2025-02-01"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.record.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	lead := NewLead(LeadVariantShow)
	lead.Show.ShowName = "Expo"
	clone := lead.Clone().(*Lead)
	clone.Show.ShowName = "Changed"
	clone.ContactName = "Changed"
	if lead.Show.ShowName != "Expo" || lead.ContactName != "" {
		t.Fatalf("clone shares state with original: %+v", lead.Show)
	}
}

func TestFieldValueFilters(t *testing.T) {
	acct := &Account{Revenue: 42}
	if v, ok := acct.FieldValue("revenue"); !ok || v != "42" {
		t.Fatalf("numeric fields render as decimal, got %q", v)
	}
	if _, ok := acct.FieldValue("nonexistent"); ok {
		t.Fatalf("unknown fields must report absent")
	}
	task := &Task{AssignedTo: "Sam"}
	if v, _ := task.FieldValue("owner"); v != "Sam" {
		t.Fatalf("owner aliases assigned_to, got %q", v)
	}
}

func TestEveryWritableFieldIsFilterable(t *testing.T) {
	cases := []struct {
		kind   EntityType
		fields Fields
	}{
		{EntityContact, Fields{"name": "Asha", "email": "asha@example.com", "phone": "+91 98200 00001", "company": "Wipro", "owner": "Sam", "last_activity": "2025-01-02", "tag": "VIP"}},
		{EntityAccount, Fields{"name": "Globex", "industry": "Retail", "location": "Pune", "owner": "Sam", "revenue": int64(5000), "employees": int64(70), "status": "Inactive"}},
		{EntityDeal, Fields{"name": "Fit-out", "account": "Globex", "amount": int64(900), "close_date": "2025-03-04", "stage": "Negotiation", "owner": "Sam", "lead_source": "Referral", "description": "Phase two"}},
		{EntityTask, Fields{"subject": "Call back", "related_to": "Deal", "due_date": "2025-02-01", "priority": "High", "status": "In Progress", "assigned_to": "Sam", "description": "Ask about budget"}},
		{EntityLead, Fields{
			"variant": "show", "contact_name": "Ravi", "client_email": "ravi@example.com", "job_title": "CFO",
			"company_name": "Initech", "company_website": "https://initech.example", "company_country": "India",
			"phone": "+91 98200 00002", "lead_source": "LinkedIn", "status": "Qualified", "message": "Wants a booth",
			"show_name": "Auto Expo Delhi", "show_website": "https://expo.example", "show_date": "2025-06-07",
			"attendee_count": int64(120), "key_points": "Needs lighting",
		}},
	}
	for _, tc := range cases {
		rec, err := NewRecord(tc.kind, tc.fields)
		if err != nil {
			t.Fatalf("%s: new: %v", tc.kind, err)
		}
		if err := rec.ApplyFields(tc.fields); err != nil {
			t.Fatalf("%s: apply: %v", tc.kind, err)
		}
		for name, raw := range tc.fields {
			got, ok := rec.FieldValue(name)
			if !ok || got != fmt.Sprint(raw) {
				t.Fatalf("%s.%s: expected %q to be filterable, got %q (%v)", tc.kind, name, fmt.Sprint(raw), got, ok)
			}
		}
	}

	industry := NewLead(LeadVariantIndustry)
	for _, name := range showFields {
		if _, ok := industry.FieldValue(name); ok {
			t.Fatalf("industry leads must not expose %s", name)
		}
	}
}

func TestEnumsAndHelpers(t *testing.T) {
	if _, err := ParseDealStage("Closed Won"); err != nil {
		t.Fatalf("parse stage: %v", err)
	}
	if _, err := ParseDealStage("closed won"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("stage parsing is exact, got %v", err)
	}
	stages := DealStages()
	stages[0] = "mutated"
	if DealStages()[0] != StageProspecting {
		t.Fatalf("DealStages must return a copy")
	}
	if f, ok := StatusField(EntityDeal); !ok || f != "stage" {
		t.Fatalf("deal status field is stage, got %q", f)
	}
	if _, ok := StatusField(EntityContact); ok {
		t.Fatalf("contacts have no status field")
	}
	if _, ok := OwnerField(EntityLead); ok {
		t.Fatalf("leads have no owner field")
	}
	if k, err := ParseEntityType("deals"); err != nil || k != EntityDeal {
		t.Fatalf("parse entity type: %v", err)
	}
}

func TestErrorMessages(t *testing.T) {
	nf := NotFoundError{Entity: EntityDeal, ID: "D9"}
	if nf.Error() != "deals D9 not found" || !errors.Is(nf, ErrNotFound) {
		t.Fatalf("unexpected not found error %q", nf.Error())
	}
	dup := DuplicateIdentifierError{Entity: EntityContact, ID: "C1"}
	if !errors.Is(dup, ErrDuplicateIdentifier) || errors.Is(dup, ErrNotFound) {
		t.Fatalf("duplicate identifier classification wrong")
	}
	inv := InvalidArgumentError{Entity: EntityDeal, Field: "stage", Value: "X", Reason: "unknown deal stage"}
	if inv.Error() != `invalid deals.stage "X": unknown deal stage` {
		t.Fatalf("unexpected message %q", inv.Error())
	}
}
