// Package types defines the supply-chain payloads carried by ledger
// transactions and the schema rules they are validated against.
package types

// TransactionType tags the payload variant carried by a transaction
type TransactionType string

const (
	TypeProductRegistration TransactionType = "product_registration"
	TypeProcessing          TransactionType = "processing"
	TypeTransfer            TransactionType = "transfer"
	TypeQualityCheck        TransactionType = "quality_check"
	TypeRetail              TransactionType = "retail"
	TypeMining              TransactionType = "mining"
)

// ProvenanceTypes lists the transaction types that carry a product claim
var ProvenanceTypes = []TransactionType{
	TypeProductRegistration,
	TypeProcessing,
	TypeTransfer,
	TypeQualityCheck,
	TypeRetail,
}

// IsProvenance reports whether t references a product
func (t TransactionType) IsProvenance() bool {
	for _, p := range ProvenanceTypes {
		if p == t {
			return true
		}
	}
	return false
}

// ProductCategory classifies registered products
type ProductCategory string

const (
	CategoryFood        ProductCategory = "food"
	CategoryClothing    ProductCategory = "clothing"
	CategoryElectronics ProductCategory = "electronics"
	CategoryCosmetics   ProductCategory = "cosmetics"
	CategoryOther       ProductCategory = "other"
)

// Valid reports whether c is a known category
func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryFood, CategoryClothing, CategoryElectronics, CategoryCosmetics, CategoryOther:
		return true
	}
	return false
}

// CertificationType names the kind of a certification
type CertificationType string

const (
	CertOrganic       CertificationType = "organic"
	CertFairTrade     CertificationType = "fair_trade"
	CertSustainable   CertificationType = "sustainable"
	CertCarbonNeutral CertificationType = "carbon_neutral"
	CertEcoFriendly   CertificationType = "eco_friendly"
	CertOther         CertificationType = "other"
)

// Valid reports whether c is a known certification type
func (c CertificationType) Valid() bool {
	switch c {
	case CertOrganic, CertFairTrade, CertSustainable, CertCarbonNeutral, CertEcoFriendly, CertOther:
		return true
	}
	return false
}

// ActorType is the role a participant plays in the supply chain
type ActorType string

const (
	ActorProducer    ActorType = "producer"
	ActorProcessor   ActorType = "processor"
	ActorDistributor ActorType = "distributor"
	ActorRetailer    ActorType = "retailer"
	ActorCertifier   ActorType = "certifier"
	ActorConsumer    ActorType = "consumer"
)

// Valid reports whether a is a known actor type
func (a ActorType) Valid() bool {
	switch a {
	case ActorProducer, ActorProcessor, ActorDistributor, ActorRetailer, ActorCertifier, ActorConsumer:
		return true
	}
	return false
}

// Location is a geographic point with an optional postal description
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
}

// Certification attests a property of a product
type Certification struct {
	CertificationType CertificationType `json:"certification_type"`
	Issuer            string            `json:"issuer"`
	IssueDate         string            `json:"issue_date"`
	ExpiryDate        string            `json:"expiry_date,omitempty"`
	CertificationID   string            `json:"certification_id"`
	AdditionalInfo    map[string]any    `json:"additional_info,omitempty"`
}
