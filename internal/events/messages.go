package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a committed ledger mutation
type EventType string

const (
	WalletTransferred  EventType = "wallet.transferred"
	DebtSettled        EventType = "debt.settled"
	GoalContributed    EventType = "goal.contributed"
	GoalWithdrawn      EventType = "goal.withdrawn"
	BudgetReallocated  EventType = "budget.reallocated"
	InvestmentRecorded EventType = "investment.recorded"
)

// LedgerEvent is published after a mutation commits. Consumers fetch the
// rows they need by id, the event only carries references.
type LedgerEvent struct {
	ID         uuid.UUID            `json:"id"`
	Type       EventType            `json:"type"`
	UserID     uuid.UUID            `json:"user_id"`
	Reference  uuid.UUID            `json:"reference"`
	Amount     decimal.Decimal      `json:"amount"`
	Entities   map[string]uuid.UUID `json:"entities"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewLedgerEvent stamps a new event with an id and the current time
func NewLedgerEvent(typ EventType, userID, reference uuid.UUID, amount decimal.Decimal, entities map[string]uuid.UUID) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.New(),
		Type:       typ,
		UserID:     userID,
		Reference:  reference,
		Amount:     amount,
		Entities:   entities,
		OccurredAt: time.Now().UTC(),
	}
}

// RoutingKey is the topic key the event is published under
func (e LedgerEvent) RoutingKey(prefix string) string {
	if prefix == "" {
		return string(e.Type)
	}
	return prefix + "." + string(e.Type)
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event published by Client
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}
