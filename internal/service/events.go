package service

import (
	"encoding/json"
	"time"

	"creditmanager/internal/model"
)

// balanceEvent is the payload shipped to kafka for every balance
// mutation, keyed by account so per-account ordering holds.
type balanceEvent struct {
	TransactionNo string `json:"transaction_no"`
	AccountUUID   string `json:"account_uuid"`
	Amount        int64  `json:"amount"`
	Type          string `json:"type"`
	BalanceAfter  int64  `json:"balance_after"`
	Reference     string `json:"reference,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

func newBalanceOutboxMessage(topic string, trans *model.CreditTransaction) *model.OutboxMessage {
	payload, _ := json.Marshal(balanceEvent{
		TransactionNo: trans.TransactionNo,
		AccountUUID:   trans.AccountUUID,
		Amount:        trans.Amount,
		Type:          trans.Type,
		BalanceAfter:  trans.BalanceAfter,
		Reference:     trans.Reference,
		OccurredAt:    time.Now().Format(time.RFC3339),
	})

	return &model.OutboxMessage{
		MessageKey: trans.AccountUUID,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
}
