// Package seed produces the synthetic records a collection is populated with
// the first time it is read. Field values come from fixed tables indexed by
// position; only the relative dates draw on the random source.
package seed

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"crmcore/pkg/domain"
)

// Base identifiers and batch sizes per collection.
const (
	ShowLeadBase     = 1000
	IndustryLeadBase = 2000
	DealBase         = 3000
	TaskBase         = 4000
	ContactBase      = 5000
	AccountBase      = 7000
)

// DealStageCounts is the number of seeded deals per stage, in pipeline order.
var DealStageCounts = map[domain.DealStage]int{
	domain.StageProspecting:   15,
	domain.StageQualification: 12,
	domain.StageNegotiation:   8,
	domain.StageClosedWon:     5,
	domain.StageClosedLost:    3,
}

// Generator builds seed batches. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithSource sets the random source used for relative dates.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		if src != nil {
			g.rng = rand.New(src)
		}
	}
}

// WithSeed makes date sampling reproducible.
func WithSeed(seed uint64) Option {
	return WithSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// WithClock sets the reference time relative dates are sampled around.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a generator. Without options it samples from a randomly
// seeded source around the current time.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Seed returns the seed batch for kind. Unknown kinds yield an empty batch.
func (g *Generator) Seed(kind domain.EntityType) []domain.Record {
	switch kind {
	case domain.EntityLead:
		return append(g.ShowLeads(), g.IndustryLeads()...)
	case domain.EntityContact:
		return g.Contacts()
	case domain.EntityAccount:
		return g.Accounts()
	case domain.EntityDeal:
		return g.Deals()
	case domain.EntityTask:
		return g.Tasks()
	}
	return []domain.Record{}
}

var (
	showLeadNames = []string{"Amit Sharma", "Priya Patel", "Rahul Singh", "Neha Gupta", "Vikram Kumar", "Anita Desai", "Sanjay Mehta", "Kavita Reddy", "Arun Iyer", "Deepika Joshi", "Rajesh Verma", "Sunita Nair", "Manoj Agarwal", "Pooja Kapoor", "Suresh Rao"}
	showJobTitles = []string{"Event Manager", "Marketing Director", "HR Head", "Operations Manager", "Business Development Manager", "Sales Director", "Brand Manager", "Corporate Communications Head"}
	showNames     = []string{"Tech Summit Mumbai 2025", "Auto Expo Delhi", "Pharma Conference Bangalore", "Retail Convention Pune", "Education Fair Chennai", "Healthcare Expo Hyderabad", "Manufacturing Summit Ahmedabad", "Fintech Conference Kolkata", "Real Estate Expo Gurgaon", "Food & Beverage Show Mumbai", "Fashion Week Delhi", "Startup Summit Bangalore", "E-commerce Expo Pune", "Digital Marketing Conference Chennai", "Logistics Summit Hyderabad"}
	showCompanies = []string{"Infosys", "Wipro", "TCS", "Tech Mahindra", "Reliance Industries", "Tata Motors", "Mahindra & Mahindra", "Aditya Birla Group", "HDFC Bank", "ICICI Bank", "Bharti Airtel", "Asian Paints", "Larsen & Toubro", "Godrej Group", "HUL"}

	industryLeadNames = []string{"Sunil Khanna", "Ritu Saxena", "Arjun Malhotra", "Shreya Bose", "Karan Chopra", "Meena Raghavan", "Vishal Pandey", "Anjali Sinha", "Rohit Bansal", "Divya Menon", "Prakash Jain", "Nisha Sharma", "Ashok Kumar", "Rekha Pillai", "Vijay Reddy"}
	industryJobTitles = []string{"CEO", "VP Sales", "Director Operations", "CFO", "Head of Marketing", "COO", "General Manager", "Business Head"}
	industryCompanies = []string{"Flipkart", "Paytm", "Zomato", "Ola Cabs", "Swiggy", "BigBasket", "PolicyBazaar", "Byju's", "OYO Rooms", "Freshworks", "Zoho Corp", "InMobi", "Myntra", "Urban Company", "CRED"}
	industryCountries = []string{"India", "USA", "UK", "UAE", "Singapore"}

	leadSources  = []domain.LeadSource{domain.LeadSourceEmail, domain.LeadSourceLinkedIn}
	leadStatuses = []domain.LeadStatus{domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusQualified, domain.LeadStatusLost}

	contactNames     = []string{"Amit Kumar", "Priya Singh", "Rajesh Patel", "Sneha Sharma", "Vikram Reddy", "Anita Iyer", "Sanjay Mehta", "Kavita Desai", "Arun Verma", "Deepika Nair", "Manoj Gupta", "Pooja Joshi", "Suresh Rao", "Sunita Kapoor", "Rahul Agarwal", "Neha Chopra", "Kiran Kumar", "Ritu Malhotra", "Vishal Saxena", "Anjali Pandey"}
	contactCompanies = []string{"Infosys", "Wipro", "TCS", "Tech Mahindra", "Reliance", "Tata Motors", "HDFC Bank", "ICICI Bank", "Flipkart", "Paytm", "Zomato", "Ola", "Swiggy", "Byju's", "OYO", "Freshworks", "Zoho", "InMobi", "Myntra", "CRED"}
	contactTags      = []string{"VIP", "Decision Maker"}
	owners           = []string{"Rajesh Kumar", "Priya Sharma", "Amit Patel", "Sneha Reddy", "Vikram Singh"}

	accountNames      = []string{"Infosys Limited", "Wipro Technologies", "Tata Consultancy Services", "Tech Mahindra", "Reliance Industries", "Tata Motors", "Mahindra & Mahindra", "HDFC Bank", "ICICI Bank", "Bharti Airtel", "Asian Paints", "Larsen & Toubro", "Godrej Group", "Hindustan Unilever", "Flipkart"}
	accountIndustries = []string{"IT Services", "Manufacturing", "Financial Services", "Telecom", "Retail", "Healthcare", "Real Estate"}
	accountLocations  = []string{"Mumbai", "Bangalore", "Delhi", "Chennai", "Hyderabad", "Pune", "Kolkata", "Ahmedabad"}
	accountStatuses   = []domain.AccountStatus{domain.AccountStatusActive, domain.AccountStatusInactive}

	dealNames       = []string{"Office Furniture", "Event Management", "IT Infrastructure", "Marketing Campaign", "HR Software", "CRM Implementation", "Cloud Migration", "Digital Transformation", "Security Systems", "Office Renovation"}
	dealAccounts    = []string{"Infosys", "Wipro", "TCS", "Tech Mahindra", "Reliance", "Tata Motors", "HDFC Bank", "ICICI Bank", "Flipkart", "Paytm"}
	dealOwners      = []string{"Rajesh Kumar", "Priya Sharma", "Amit Patel", "Sneha Reddy", "Vikram Singh", "Meera Iyer"}
	dealLeadSources = []string{"Email", "LinkedIn", "Website", "Referral"}

	taskSubjects = []string{
		"Follow up with Infosys - Office Setup Deal",
		"Send proposal to TCS - Event Management",
		"Schedule demo with Reliance Industries",
		"Call back Wipro - IT Infrastructure inquiry",
		"Prepare presentation for HDFC Bank",
		"Review contract with Flipkart",
		"Send quote to Paytm",
		"Meeting with Tech Mahindra - Digital Transformation",
		"Follow up on proposal - Tata Motors",
		"Update CRM for ICICI Bank deal",
		"Prepare demo for Bharti Airtel",
		"Send revised quotation to Asian Paints",
		"Schedule call with L&T",
		"Follow up with Godrej Group",
		"Prepare contract for HUL",
	}
	taskRelated    = []domain.RelatedKind{domain.RelatedLead, domain.RelatedContact, domain.RelatedDeal, domain.RelatedAccount}
	taskPriorities = []domain.TaskPriority{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow}
	taskStatuses   = []domain.TaskStatus{domain.TaskStatusOpen, domain.TaskStatusInProgress, domain.TaskStatusCompleted, domain.TaskStatusOverdue}
	taskAssignees  = []string{"Rajesh Kumar", "Priya Sharma", "Amit Patel", "Sneha Reddy"}
)

// ShowLeads returns the show-lead half of the leads batch (SL1000..SL1014).
func (g *Generator) ShowLeads() []domain.Record {
	out := make([]domain.Record, 0, len(showLeadNames))
	for i, name := range showLeadNames {
		lead := g.lead(domain.LeadVariantShow, ShowLeadBase, i, name, showCompanies[i])
		lead.JobTitle = showJobTitles[i%len(showJobTitles)]
		lead.CompanyCountry = "India"
		lead.Phone = phone(9000000000, i)
		lead.Message = "Hello, we are organizing " + showNames[i] + " and would like to discuss exhibition opportunities."
		lead.Show.ShowName = showNames[i]
		lead.Show.ShowWebsite = "https://" + squash(showNames[i]) + ".com"
		lead.Show.ShowDate = time.Date(2025, time.Month(i/3+1), i%28+1, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout)
		lead.Show.AttendeeCount = int64(100 + i*300)
		lead.Show.KeyPoints = "Interested in premium booth space, requires AV equipment"
		out = append(out, lead)
	}
	return out
}

// IndustryLeads returns the industry-lead half of the leads batch (IL2000..IL2014).
func (g *Generator) IndustryLeads() []domain.Record {
	out := make([]domain.Record, 0, len(industryLeadNames))
	for i, name := range industryLeadNames {
		lead := g.lead(domain.LeadVariantIndustry, IndustryLeadBase, i, name, industryCompanies[i])
		lead.JobTitle = industryJobTitles[i%len(industryJobTitles)]
		lead.CompanyCountry = industryCountries[i%len(industryCountries)]
		lead.Phone = phone(8000000000, i)
		lead.Message = "Exploring opportunities for corporate event management and exhibition services."
		out = append(out, lead)
	}
	return out
}

func (g *Generator) lead(variant domain.LeadVariant, base, i int, name, company string) *domain.Lead {
	lead := domain.NewLead(variant)
	lead.ID = lead.IDPrefix() + strconv.Itoa(base+i)
	lead.CreatedAt = time.Date(2025, time.January, i+1, 0, 0, 0, 0, time.UTC)
	lead.UpdatedAt = lead.CreatedAt
	lead.ContactName = name
	lead.ClientEmail = emailLocal(name) + "@" + squash(company) + ".com"
	lead.CompanyName = company
	lead.CompanyWebsite = "https://www." + squash(company) + ".com"
	lead.LeadSource = leadSources[i%len(leadSources)]
	lead.Status = leadStatuses[i%len(leadStatuses)]
	return lead
}

// Contacts returns C5000..C5019.
func (g *Generator) Contacts() []domain.Record {
	now := g.now()
	out := make([]domain.Record, 0, len(contactNames))
	for i, name := range contactNames {
		out = append(out, &domain.Contact{
			Base:         base("C", ContactBase+i, now),
			Name:         name,
			Email:        emailLocal(name) + "@example.com",
			Phone:        phone(9100000000, i),
			Company:      contactCompanies[i],
			Owner:        owners[i%len(owners)],
			LastActivity: g.randomDate(now, -30, 0),
			Tag:          contactTags[i%len(contactTags)],
		})
	}
	return out
}

// Accounts returns A7000..A7014.
func (g *Generator) Accounts() []domain.Record {
	now := g.now()
	out := make([]domain.Record, 0, len(accountNames))
	for i, name := range accountNames {
		out = append(out, &domain.Account{
			Base:      base("A", AccountBase+i, now),
			Name:      name,
			Industry:  accountIndustries[i%len(accountIndustries)],
			Location:  accountLocations[i%len(accountLocations)],
			Owner:     owners[i%len(owners)],
			Revenue:   int64(5000000 + i*500000),
			Employees: int64(100 + i*500),
			Status:    accountStatuses[i%len(accountStatuses)],
		})
	}
	return out
}

// Deals returns D3000..D3042 grouped by stage in pipeline order.
func (g *Generator) Deals() []domain.Record {
	now := g.now()
	var out []domain.Record
	for _, stage := range domain.DealStages() {
		for j := 0; j < DealStageCounts[stage]; j++ {
			n := len(out)
			out = append(out, &domain.Deal{
				Base:       base("D", DealBase+n, now),
				Name:       dealNames[n%len(dealNames)] + " - " + dealAccounts[n%len(dealAccounts)],
				Account:    dealAccounts[n%len(dealAccounts)],
				Amount:     int64(50000 + n*50000),
				CloseDate:  g.randomDate(now, 0, 90),
				Stage:      stage,
				Owner:      dealOwners[n%len(dealOwners)],
				LeadSource: dealLeadSources[n%len(dealLeadSources)],
			})
		}
	}
	return out
}

// Tasks returns T4000..T4014.
func (g *Generator) Tasks() []domain.Record {
	now := g.now()
	out := make([]domain.Record, 0, len(taskSubjects))
	for i, subject := range taskSubjects {
		out = append(out, &domain.Task{
			Base:       base("T", TaskBase+i, now),
			Subject:    subject,
			RelatedTo:  taskRelated[i%len(taskRelated)],
			DueDate:    g.randomDate(now, -5, 30),
			Priority:   taskPriorities[i%len(taskPriorities)],
			Status:     taskStatuses[i%len(taskStatuses)],
			AssignedTo: taskAssignees[i%len(taskAssignees)],
		})
	}
	return out
}

// randomDate samples a calendar date uniformly between now+fromDays and
// now+toDays.
func (g *Generator) randomDate(now time.Time, fromDays, toDays int) string {
	start := now.AddDate(0, 0, fromDays)
	span := now.AddDate(0, 0, toDays).Sub(start)
	var offset time.Duration
	if span > 0 {
		g.mu.Lock()
		offset = time.Duration(g.rng.Int64N(int64(span)))
		g.mu.Unlock()
	}
	return start.Add(offset).UTC().Format(domain.DateLayout)
}

func base(prefix string, n int, at time.Time) domain.Base {
	return domain.Base{ID: prefix + strconv.Itoa(n), CreatedAt: at, UpdatedAt: at}
}

// emailLocal lowercases a name and joins its first two words with a dot.
func emailLocal(name string) string {
	return strings.Replace(strings.ToLower(name), " ", ".", 1)
}

// squash lowercases s and drops all whitespace.
func squash(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

func phone(base int64, i int) string {
	return "+91 " + strconv.FormatInt(base+int64(i)*11111, 10)
}
