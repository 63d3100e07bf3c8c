package redeem

// Outcome classifies a redemption attempt for the student UI. Every value
// here is recoverable; the scanner simply redisplays.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeInvalidCode     Outcome = "invalid_code"
	OutcomeWrongCodeType   Outcome = "wrong_code_type"
	OutcomeCorruptCode     Outcome = "corrupt_code"
	OutcomeExpired         Outcome = "expired"
	OutcomeAlreadyRedeemed Outcome = "already_redeemed"
)

// Rejection is a user-facing refusal with a remediation message. For
// corrupt codes MissingFields names what the payload lacked.
type Rejection struct {
	Outcome       Outcome  `json:"outcome"`
	Message       string   `json:"message"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

func reject(o Outcome) *Rejection {
	return &Rejection{Outcome: o, Message: messages[o]}
}

var messages = map[Outcome]string{
	OutcomeInvalidCode:     "That code is not an attendance QR code.",
	OutcomeWrongCodeType:   "That QR code is for something else — scan the attendance code shown by your lecturer.",
	OutcomeCorruptCode:     "The attendance code is incomplete. Ask your lecturer to reopen the QR view.",
	OutcomeExpired:         "This attendance code has expired. Ask your lecturer for a fresh one.",
	OutcomeAlreadyRedeemed: "Your attendance for this session is already recorded.",
}
