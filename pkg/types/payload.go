package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is the closed set of transaction bodies. Only the variants in this
// package implement it.
type Payload interface {
	// Type returns the transaction type the payload belongs to
	Type() TransactionType

	// ProductRef returns the referenced product, empty for mining rewards
	ProductRef() string

	// Validate checks field contents after decoding
	Validate() error

	isPayload()
}

// ProductRegistration introduces a new product into the ledger
type ProductRegistration struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       ProductCategory `json:"category,omitempty"`
	ProducerID     string          `json:"producer_id"`
	ProductionDate string          `json:"production_date,omitempty"`
	OriginLocation *Location       `json:"origin_location,omitempty"`
	Certifications []Certification `json:"certifications,omitempty"`
	BatchNumber    string          `json:"batch_number,omitempty"`
	AdditionalInfo map[string]any  `json:"additional_info,omitempty"`
}

// ProcessingStep records a transformation applied to a product
type ProcessingStep struct {
	ProcessID               string         `json:"process_id"`
	ProductID               string         `json:"product_id"`
	ActorID                 string         `json:"actor_id"`
	ActorType               ActorType      `json:"actor_type,omitempty"`
	ProcessType             string         `json:"process_type"`
	Description             string         `json:"description,omitempty"`
	Timestamp               string         `json:"timestamp,omitempty"`
	Location                *Location      `json:"location,omitempty"`
	Inputs                  []string       `json:"inputs,omitempty"`
	Outputs                 []string       `json:"outputs,omitempty"`
	CertificationReferences []string       `json:"certification_references,omitempty"`
	AdditionalInfo          map[string]any `json:"additional_info,omitempty"`
}

// TransferEvent hands custody of a product to another participant
type TransferEvent struct {
	TransferID           string         `json:"transfer_id"`
	ProductID            string         `json:"product_id"`
	SenderID             string         `json:"sender_id"`
	SenderType           ActorType      `json:"sender_type,omitempty"`
	RecipientID          string         `json:"recipient_id"`
	RecipientType        ActorType      `json:"recipient_type,omitempty"`
	Timestamp            string         `json:"timestamp,omitempty"`
	DepartureLocation    *Location      `json:"departure_location,omitempty"`
	ArrivalLocation      *Location      `json:"arrival_location,omitempty"`
	EstimatedArrivalTime string         `json:"estimated_arrival_time,omitempty"`
	TransportConditions  map[string]any `json:"transport_conditions,omitempty"`
	Status               string         `json:"status,omitempty"`
	AdditionalInfo       map[string]any `json:"additional_info,omitempty"`
}

// Quality is the outcome of an inspection
type Quality struct {
	QualityID      string         `json:"quality_id"`
	ProductID      string         `json:"product_id"`
	InspectorID    string         `json:"inspector_id"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Metrics        map[string]any `json:"metrics,omitempty"`
	Passed         bool           `json:"passed"`
	Notes          string         `json:"notes,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// RetailEvent records the sale of a product to an end customer
type RetailEvent struct {
	RetailID       string         `json:"retail_id"`
	ProductID      string         `json:"product_id"`
	RetailerID     string         `json:"retailer_id"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Location       *Location      `json:"location,omitempty"`
	Price          float64        `json:"price"`
	Currency       string         `json:"currency"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// MiningReward is the body of the synthetic reward transaction added by the
// miner. It carries no product claim.
type MiningReward struct {
	Message string `json:"message"`
}

func (ProductRegistration) Type() TransactionType { return TypeProductRegistration }
func (ProcessingStep) Type() TransactionType      { return TypeProcessing }
func (TransferEvent) Type() TransactionType       { return TypeTransfer }
func (Quality) Type() TransactionType             { return TypeQualityCheck }
func (RetailEvent) Type() TransactionType         { return TypeRetail }
func (MiningReward) Type() TransactionType        { return TypeMining }

func (p ProductRegistration) ProductRef() string { return p.ProductID }
func (p ProcessingStep) ProductRef() string      { return p.ProductID }
func (p TransferEvent) ProductRef() string       { return p.ProductID }
func (p Quality) ProductRef() string             { return p.ProductID }
func (p RetailEvent) ProductRef() string         { return p.ProductID }
func (MiningReward) ProductRef() string          { return "" }

func (ProductRegistration) isPayload() {}
func (ProcessingStep) isPayload()      {}
func (TransferEvent) isPayload()       {}
func (Quality) isPayload()             {}
func (RetailEvent) isPayload()         {}
func (MiningReward) isPayload()        {}

// FieldError names the payload field that failed validation
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// requiredFields lists the keys that must be present, non-null, in a
// submitted payload of each type
var requiredFields = map[TransactionType][]string{
	TypeProductRegistration: {"product_id", "name", "producer_id"},
	TypeProcessing:          {"process_id", "product_id", "actor_id", "process_type"},
	TypeTransfer:            {"transfer_id", "product_id", "sender_id", "recipient_id"},
	TypeQualityCheck:        {"quality_id", "product_id", "inspector_id", "passed"},
	TypeRetail:              {"retail_id", "product_id", "retailer_id", "price", "currency"},
}

// DecodePayload strictly decodes a submitted payload of type t: required keys
// must be present, unknown keys are rejected, JSON types must match and
// field contents must pass Validate. Failures are *FieldError.
func DecodePayload(t TransactionType, raw []byte) (Payload, error) {
	if t == TypeMining {
		return nil, &FieldError{Field: "transaction_type", Reason: "mining transactions are created by the miner"}
	}
	required, ok := requiredFields[t]
	if !ok {
		return nil, &FieldError{Field: "transaction_type", Reason: fmt.Sprintf("unsupported transaction type %q", t)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &FieldError{Field: "data", Reason: "must be a JSON object"}
	}
	for _, name := range required {
		value, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return nil, &FieldError{Field: name, Reason: "required field missing"}
		}
	}

	p, err := decodeVariant(t, raw, true)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// UnmarshalPayload decodes a payload already recorded on a chain. Only the
// transaction type is checked.
func UnmarshalPayload(t TransactionType, raw []byte) (Payload, error) {
	return decodeVariant(t, raw, false)
}

func decodeVariant(t TransactionType, raw []byte, strict bool) (Payload, error) {
	switch t {
	case TypeProductRegistration:
		return decodeAs[ProductRegistration](raw, strict)
	case TypeProcessing:
		return decodeAs[ProcessingStep](raw, strict)
	case TypeTransfer:
		return decodeAs[TransferEvent](raw, strict)
	case TypeQualityCheck:
		return decodeAs[Quality](raw, strict)
	case TypeRetail:
		return decodeAs[RetailEvent](raw, strict)
	case TypeMining:
		return decodeAs[MiningReward](raw, strict)
	default:
		return nil, &FieldError{Field: "transaction_type", Reason: fmt.Sprintf("unsupported transaction type %q", t)}
	}
}

func decodeAs[T Payload](raw []byte, strict bool) (Payload, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&v); err != nil {
		return nil, fieldErrorFrom(err)
	}
	return v, nil
}

func fieldErrorFrom(err error) *FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "data"
		}
		return &FieldError{Field: field, Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &FieldError{Field: strings.Trim(name, `"`), Reason: "unknown field"}
	}
	return &FieldError{Field: "data", Reason: err.Error()}
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Location) validate(field string) error {
	if l == nil {
		return nil
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return &FieldError{Field: field + ".latitude", Reason: "out of range"}
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return &FieldError{Field: field + ".longitude", Reason: "out of range"}
	}
	return nil
}

func (c Certification) validate(field string) error {
	if !c.CertificationType.Valid() {
		return &FieldError{Field: field + ".certification_type", Reason: fmt.Sprintf("unknown certification type %q", c.CertificationType)}
	}
	return firstError(
		requireText(field+".issuer", c.Issuer),
		requireText(field+".certification_id", c.CertificationID),
	)
}

func validActor(field string, a ActorType) error {
	if a != "" && !a.Valid() {
		return &FieldError{Field: field, Reason: fmt.Sprintf("unknown actor type %q", a)}
	}
	return nil
}

// Validate implements Payload
func (p ProductRegistration) Validate() error {
	if err := firstError(
		requireText("product_id", p.ProductID),
		requireText("name", p.Name),
		requireText("producer_id", p.ProducerID),
		p.OriginLocation.validate("origin_location"),
	); err != nil {
		return err
	}
	if p.Category != "" && !p.Category.Valid() {
		return &FieldError{Field: "category", Reason: fmt.Sprintf("unknown category %q", p.Category)}
	}
	for i, cert := range p.Certifications {
		if err := cert.validate(fmt.Sprintf("certifications[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// Validate implements Payload
func (p ProcessingStep) Validate() error {
	return firstError(
		requireText("process_id", p.ProcessID),
		requireText("product_id", p.ProductID),
		requireText("actor_id", p.ActorID),
		requireText("process_type", p.ProcessType),
		validActor("actor_type", p.ActorType),
		p.Location.validate("location"),
	)
}

// Validate implements Payload
func (p TransferEvent) Validate() error {
	return firstError(
		requireText("transfer_id", p.TransferID),
		requireText("product_id", p.ProductID),
		requireText("sender_id", p.SenderID),
		requireText("recipient_id", p.RecipientID),
		validActor("sender_type", p.SenderType),
		validActor("recipient_type", p.RecipientType),
		p.DepartureLocation.validate("departure_location"),
		p.ArrivalLocation.validate("arrival_location"),
	)
}

// Validate implements Payload
func (p Quality) Validate() error {
	return firstError(
		requireText("quality_id", p.QualityID),
		requireText("product_id", p.ProductID),
		requireText("inspector_id", p.InspectorID),
	)
}

// Validate implements Payload
func (p RetailEvent) Validate() error {
	if err := firstError(
		requireText("retail_id", p.RetailID),
		requireText("product_id", p.ProductID),
		requireText("retailer_id", p.RetailerID),
		requireText("currency", p.Currency),
		p.Location.validate("location"),
	); err != nil {
		return err
	}
	if p.Price < 0 {
		return &FieldError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

// Validate implements Payload
func (p MiningReward) Validate() error {
	return nil
}
