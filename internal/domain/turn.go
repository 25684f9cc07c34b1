package domain

// Sender identifies who produced a Turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

const (
	// Greeting opens every conversation.
	Greeting = "👋 Hi! I'm your MediBridge assistant. How can I help you today?"
	// Apology replaces the reply whenever the responder cannot be reached.
	Apology = "⚠️ Something went wrong. Please try again."
)

// Option labels offered by the assistant.
const (
	OptionDonations = "Donations"
	OptionVolunteer = "Volunteer"
	OptionHospitals = "Hospitals"
	OptionOther     = "Other"
	OptionBlood     = "Blood"
	OptionOrgans    = "Organs"
	OptionGoods     = "Goods"
	OptionMoney     = "Money"
	OptionYes       = "Yes"
	OptionNo        = "No"
	OptionRetry     = "Retry"
)

// Turn is one exchange unit of a conversation. Turns are never modified once
// appended to a history.
type Turn struct {
	Sender  Sender   `json:"sender"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// HasOptions reports whether the turn offers follow-up choices.
func (t Turn) HasOptions() bool {
	return len(t.Options) > 0
}

// Clone returns a copy whose option slice is not shared with t.
func (t Turn) Clone() Turn {
	out := t
	if t.Options != nil {
		out.Options = append([]string(nil), t.Options...)
	}
	return out
}

func TopLevelOptions() []string {
	return []string{OptionDonations, OptionVolunteer, OptionHospitals, OptionOther}
}

func DonationKindOptions() []string {
	return []string{OptionBlood, OptionOrgans, OptionGoods, OptionMoney}
}

func YesNoOptions() []string {
	return []string{OptionYes, OptionNo}
}

func RetryOptions() []string {
	return []string{OptionRetry}
}
