package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Step is the user's current position in the conversation state machine.
type Step string

const (
	StepLanguageSelect Step = "LANGUAGE_SELECT"
	StepMainMenu       Step = "MAIN_MENU"

	// Buy flow.
	StepBuyChooseOrder   Step = "BUY_CHOOSE_ORDER"
	StepBuyEnterAmount   Step = "BUY_ENTER_AMOUNT"
	StepBuyEnterPayout   Step = "BUY_ENTER_PAYOUT"
	StepBuyAwaitEvidence Step = "BUY_AWAIT_EVIDENCE"

	// Seller registration.
	StepRegEnterName    Step = "REG_ENTER_NAME"
	StepRegEnterContact Step = "REG_ENTER_CONTACT"
	StepRegEnterPayout  Step = "REG_ENTER_PAYOUT"

	// Order creation (approved sellers only).
	StepOrderEnterAmount          Step = "ORDER_ENTER_AMOUNT"
	StepOrderEnterRate            Step = "ORDER_ENTER_RATE"
	StepOrderEnterCommissionType  Step = "ORDER_ENTER_COMMISSION_TYPE"
	StepOrderEnterCommissionValue Step = "ORDER_ENTER_COMMISSION_VALUE"
	StepOrderEnterPayout          Step = "ORDER_ENTER_PAYOUT"
)

// Draft accumulates field values across the steps of one flow. It is
// discarded whole on completion or cancel.
type Draft struct {
	Name            string
	Contact         string
	PayoutAccount   string
	SellerID        int64
	Amount          decimal.Decimal
	Commission      decimal.Decimal
	Total           decimal.Decimal
	TotalSettlement decimal.Decimal
	Rate            decimal.Decimal
	CommissionType  string
	CommissionValue decimal.Decimal
	ReservationID   uuid.UUID
	RequestID       uuid.UUID
}

// Session is one user's conversation state.
type Session struct {
	UserID int64
	Step   Step
	Lang   string
	Draft  Draft
}

// Store keeps one live session per user. Sessions are conversation state
// only and are not part of the durable marketplace collections.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the user's session, creating a fresh one at the language
// selection step if none exists.
func (s *Store) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.locked(userID)
}

// Update applies a mutation atomically.
func (s *Store) Update(userID int64, mutate func(*Session)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.locked(userID)
	mutate(sess)
	return *sess
}

// Reset returns the session to the main menu and clears the draft. The
// selected language survives a reset.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.locked(userID)
	sess.Step = StepMainMenu
	sess.Draft = Draft{}
}

func (s *Store) locked(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID, Step: StepLanguageSelect}
		s.sessions[userID] = sess
	}
	return sess
}
