package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

const (
	// RewardSender is the sender of mining reward transactions
	RewardSender = "0"

	// RewardSignature marks reward transactions, which are never verified
	RewardSignature = "MINING_TRANSACTION"

	rewardMessage = "Mining reward"
)

// Transaction is a signed supply-chain event
type Transaction struct {
	Sender    string                `json:"sender"`
	Type      types.TransactionType `json:"transaction_type"`
	Data      types.Payload         `json:"data"`
	Timestamp time.Time             `json:"timestamp"`
	Signature string                `json:"signature"`
	ID        string                `json:"transaction_id"`
}

// SubmitRequest is an externally submitted transaction before validation.
// Data is kept raw so the signature is checked over exactly what was sent.
type SubmitRequest struct {
	Sender    string                `json:"sender"`
	Type      types.TransactionType `json:"transaction_type"`
	Data      json.RawMessage       `json:"data"`
	Signature string                `json:"signature"`
}

// NewTransactionID returns a fresh dash-less UUID
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newRewardTransaction(now time.Time) Transaction {
	return Transaction{
		Sender:    RewardSender,
		Type:      types.TypeMining,
		Data:      types.MiningReward{Message: rewardMessage},
		Timestamp: now,
		Signature: RewardSignature,
		ID:        NewTransactionID(),
	}
}

// IsReward reports whether tx is a synthetic mining reward
func (tx Transaction) IsReward() bool {
	return tx.Type == types.TypeMining && tx.Sender == RewardSender
}

// UnmarshalJSON decodes the payload variant named by transaction_type
func (tx *Transaction) UnmarshalJSON(b []byte) error {
	var aux struct {
		Sender    string                `json:"sender"`
		Type      types.TransactionType `json:"transaction_type"`
		Data      json.RawMessage       `json:"data"`
		Timestamp time.Time             `json:"timestamp"`
		Signature string                `json:"signature"`
		ID        string                `json:"transaction_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	payload, err := types.UnmarshalPayload(aux.Type, aux.Data)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", aux.ID, err)
	}

	*tx = Transaction{
		Sender:    aux.Sender,
		Type:      aux.Type,
		Data:      payload,
		Timestamp: aux.Timestamp,
		Signature: aux.Signature,
		ID:        aux.ID,
	}
	return nil
}
