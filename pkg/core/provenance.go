package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

const (
	// ReasonNotRegistered is reported when a product's history does not
	// start with its registration
	ReasonNotRegistered = "Product not properly registered"

	// ReasonCustodyBroken is reported when a transfer is sent by someone
	// other than the owner at that point
	ReasonCustodyBroken = "Chain of custody broken"
)

// CustodyEvent is one ownership change of a product
type CustodyEvent struct {
	TransactionType types.TransactionType `json:"transaction_type"`
	Timestamp       time.Time             `json:"timestamp"`
	From            string                `json:"from"`
	To              string                `json:"to"`
	TransactionID   string                `json:"transaction_id"`
}

// ProductState is the current ownership view of a product
type ProductState struct {
	ProductID        string         `json:"product_id"`
	RegisteredBy     string         `json:"registered_by"`
	RegistrationTime time.Time      `json:"registration_time"`
	CurrentOwner     string         `json:"current_owner"`
	History          []CustodyEvent `json:"history"`
}

func (s *ProductState) clone() ProductState {
	out := *s
	out.History = append([]CustodyEvent{}, s.History...)
	return out
}

// HistoryEntry is a provenance transaction found on the chain
type HistoryEntry struct {
	BlockIndex      int                   `json:"block_index"`
	Timestamp       time.Time             `json:"timestamp"`
	TransactionType types.TransactionType `json:"transaction_type"`
	TransactionID   string                `json:"transaction_id"`
	Data            types.Payload         `json:"data"`
}

// AuthenticityReport is the outcome of a chain-of-custody check
type AuthenticityReport struct {
	Authentic        bool       `json:"authentic"`
	Reason           string     `json:"reason,omitempty"`
	ProductID        string     `json:"product_id,omitempty"`
	HistoryLength    int        `json:"history_length,omitempty"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	CurrentOwner     string     `json:"current_owner,omitempty"`
}

// productTable is the incrementally maintained product index
type productTable map[string]*ProductState

// apply folds one transaction into the table. Registrations of an existing
// product are ignored, transfers of an unknown product are ignored.
func (t productTable) apply(tx Transaction) {
	switch p := tx.Data.(type) {
	case types.ProductRegistration:
		if _, exists := t[p.ProductID]; exists {
			return
		}
		t[p.ProductID] = &ProductState{
			ProductID:        p.ProductID,
			RegisteredBy:     tx.Sender,
			RegistrationTime: tx.Timestamp,
			CurrentOwner:     tx.Sender,
			History:          []CustodyEvent{},
		}
	case types.TransferEvent:
		state, ok := t[p.ProductID]
		if !ok {
			return
		}
		state.History = append(state.History, CustodyEvent{
			TransactionType: types.TypeTransfer,
			Timestamp:       tx.Timestamp,
			From:            tx.Sender,
			To:              p.RecipientID,
			TransactionID:   tx.ID,
		})
		state.CurrentOwner = p.RecipientID
	}
}

// checkPreconditions rejects transactions that would corrupt the table
func (t productTable) checkPreconditions(tx Transaction) error {
	switch p := tx.Data.(type) {
	case types.ProductRegistration:
		if _, exists := t[p.ProductID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ProductID)
		}
	case types.TransferEvent:
		state, ok := t[p.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProduct, p.ProductID)
		}
		if state.CurrentOwner != tx.Sender {
			return fmt.Errorf("%w: %s does not own %s", ErrNotOwner, tx.Sender, p.ProductID)
		}
	}
	return nil
}

func buildProducts(chain []Block, pending []Transaction) productTable {
	table := make(productTable)
	for _, block := range chain {
		for _, tx := range block.Transactions {
			table.apply(tx)
		}
	}
	for _, tx := range pending {
		table.apply(tx)
	}
	return table
}

// ProductHistory scans chain for the provenance transactions referencing
// productID, ordered by transaction timestamp. Entries with equal
// timestamps keep chain order.
func ProductHistory(chain []Block, productID string) []HistoryEntry {
	history := []HistoryEntry{}
	for _, block := range chain {
		for _, tx := range block.Transactions {
			if !tx.Type.IsProvenance() || tx.Data == nil || tx.Data.ProductRef() != productID {
				continue
			}
			history = append(history, HistoryEntry{
				BlockIndex:      block.Index,
				Timestamp:       tx.Timestamp,
				TransactionType: tx.Type,
				TransactionID:   tx.ID,
				Data:            tx.Data,
			})
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history
}

// CheckAuthenticity replays a product history. It fails closed: the first
// entry must be the registration and every transfer must be sent by the
// owner established by the transfers before it.
func CheckAuthenticity(productID string, history []HistoryEntry) AuthenticityReport {
	if len(history) == 0 || history[0].TransactionType != types.TypeProductRegistration {
		return AuthenticityReport{Authentic: false, Reason: ReasonNotRegistered}
	}
	registration, ok := history[0].Data.(types.ProductRegistration)
	if !ok {
		return AuthenticityReport{Authentic: false, Reason: ReasonNotRegistered}
	}

	owner := registration.ProducerID
	for _, entry := range history[1:] {
		transfer, ok := entry.Data.(types.TransferEvent)
		if !ok {
			continue
		}
		if transfer.SenderID != owner {
			return AuthenticityReport{Authentic: false, Reason: ReasonCustodyBroken}
		}
		owner = transfer.RecipientID
	}

	registered := history[0].Timestamp
	return AuthenticityReport{
		Authentic:        true,
		ProductID:        productID,
		HistoryLength:    len(history),
		RegistrationDate: &registered,
		CurrentOwner:     owner,
	}
}

// History returns the on-chain provenance of a product. Products with no
// state at all are reported as ErrUnknownProduct.
func (l *Ledger) History(productID string) ([]HistoryEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.products[productID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return ProductHistory(l.chain, productID), nil
}

// Authenticity checks the chain of custody of a product using the chain
// alone; pending transactions are not considered.
func (l *Ledger) Authenticity(productID string) AuthenticityReport {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return CheckAuthenticity(productID, ProductHistory(l.chain, productID))
}

// ProductState returns a copy of the tracked state of a product
func (l *Ledger) ProductState(productID string) (ProductState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, ok := l.products[productID]
	if !ok {
		return ProductState{}, false
	}
	return state.clone(), true
}

// Products lists tracked products ordered by ID, restricted to owner when
// owner is not empty
func (l *Ledger) Products(owner string) []ProductState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ProductState, 0, len(l.products))
	for _, state := range l.products {
		if owner != "" && state.CurrentOwner != owner {
			continue
		}
		out = append(out, state.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// RebuildProvenance recomputes the product table from the chain followed by
// the pending pool
func (l *Ledger) RebuildProvenance() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.products = buildProducts(l.chain, l.pending)
}
