package common

const (
	EscrowStatusCreated  = "created"
	EscrowStatusFunded   = "funded"
	EscrowStatusDisputed = "disputed"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"

	MilestoneStatusPending   = "pending"
	MilestoneStatusSubmitted = "submitted"
	MilestoneStatusApproved  = "approved"
	MilestoneStatusRejected  = "rejected"

	PayoutStatusPending    = "pending"
	PayoutStatusApproved   = "approved"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusRejected   = "rejected"
	PayoutStatusFailed     = "failed"

	EntryTypeDebit  = "debit"
	EntryTypeCredit = "credit"

	WalletTypeUser     = "user"
	WalletTypeClearing = "clearing"
	WalletTypeFees     = "fees"

	AccountStatusUnverified = "unverified"
	AccountStatusVerified   = "verified"
	AccountStatusSuspended  = "suspended"
)

// Transition tables for the three state machines. A status maps to the set
// of statuses reachable from it; terminal states map to an empty set.
var (
	EscrowTransitions = map[string][]string{
		EscrowStatusCreated:  {EscrowStatusFunded},
		EscrowStatusFunded:   {EscrowStatusDisputed, EscrowStatusReleased, EscrowStatusRefunded},
		EscrowStatusDisputed: {EscrowStatusReleased, EscrowStatusRefunded},
		EscrowStatusReleased: {},
		EscrowStatusRefunded: {},
	}

	MilestoneTransitions = map[string][]string{
		MilestoneStatusPending:   {MilestoneStatusSubmitted},
		MilestoneStatusSubmitted: {MilestoneStatusApproved, MilestoneStatusRejected},
		MilestoneStatusRejected:  {MilestoneStatusSubmitted},
		MilestoneStatusApproved:  {},
	}

	PayoutTransitions = map[string][]string{
		PayoutStatusPending:    {PayoutStatusApproved, PayoutStatusRejected},
		PayoutStatusApproved:   {PayoutStatusProcessing, PayoutStatusFailed},
		PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
		PayoutStatusCompleted:  {},
		PayoutStatusRejected:   {},
		PayoutStatusFailed:     {},
	}
)

// CanTransition reports whether the given transition table allows moving
// from one status to another.
func CanTransition(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PayoutNonTerminalStatuses are the states in which a payout still blocks a
// new withdrawal request for the same wallet.
var PayoutNonTerminalStatuses = []string{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusProcessing,
}
