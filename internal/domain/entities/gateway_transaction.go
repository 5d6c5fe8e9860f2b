// Package entities - GatewayTransaction mirrors one external processor
// event. The unique gateway transaction id is what makes duplicate webhook
// deliveries harmless: the second insert is ignored.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// GatewayTransaction is the processor-side record of an external event.
type GatewayTransaction struct {
	id                   uuid.UUID
	gatewayTransactionID string // processor id, unique per event
	gateway              string
	status               string
	amount               valueobjects.Money
	webhookData          []byte // raw event body as delivered
	transactionID        *uuid.UUID
	createdAt            time.Time
}

// NewGatewayTransaction creates a record for a verified processor event.
func NewGatewayTransaction(
	gatewayTransactionID, gateway, status string,
	amount valueobjects.Money,
	webhookData []byte,
	transactionID *uuid.UUID,
) (*GatewayTransaction, error) {
	if gatewayTransactionID == "" {
		return nil, errors.ValidationError{Field: "gateway_transaction_id", Message: "gateway transaction id is required"}
	}
	if gateway == "" {
		return nil, errors.ValidationError{Field: "gateway", Message: "gateway is required"}
	}
	return &GatewayTransaction{
		id:                   uuid.New(),
		gatewayTransactionID: gatewayTransactionID,
		gateway:              gateway,
		status:               status,
		amount:               amount,
		webhookData:          webhookData,
		transactionID:        transactionID,
		createdAt:            time.Now().UTC(),
	}, nil
}

// ReconstructGatewayTransaction hydrates a GatewayTransaction from stored data.
func ReconstructGatewayTransaction(
	id uuid.UUID,
	gatewayTransactionID, gateway, status string,
	amount valueobjects.Money,
	webhookData []byte,
	transactionID *uuid.UUID,
	createdAt time.Time,
) *GatewayTransaction {
	return &GatewayTransaction{
		id:                   id,
		gatewayTransactionID: gatewayTransactionID,
		gateway:              gateway,
		status:               status,
		amount:               amount,
		webhookData:          webhookData,
		transactionID:        transactionID,
		createdAt:            createdAt,
	}
}

func (g *GatewayTransaction) ID() uuid.UUID                 { return g.id }
func (g *GatewayTransaction) GatewayTransactionID() string  { return g.gatewayTransactionID }
func (g *GatewayTransaction) Gateway() string               { return g.gateway }
func (g *GatewayTransaction) Status() string                { return g.status }
func (g *GatewayTransaction) Amount() valueobjects.Money    { return g.amount }
func (g *GatewayTransaction) WebhookData() []byte           { return g.webhookData }
func (g *GatewayTransaction) TransactionID() *uuid.UUID     { return g.transactionID }
func (g *GatewayTransaction) CreatedAt() time.Time          { return g.createdAt }
