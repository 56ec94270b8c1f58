package core

// EventType names a ledger notification
type EventType string

const (
	EventNewBlock       EventType = "newBlock"
	EventNewTransaction EventType = "newTransaction"
	EventChainReplaced  EventType = "chainReplaced"
)

// Event is published after the ledger changes. Length is the chain length
// once the change has been applied.
type Event struct {
	Type        EventType    `json:"type"`
	Block       *Block       `json:"block,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Length      int          `json:"length"`
}
