package adapter

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"main/internal/model"
	"main/internal/model/enum"
)

// Adapter translates payloads from one external source into the native data
// models and native orders back into venue payloads. It talks to the rest of
// the system only through the bus and the connector's outbound queue; the core
// never parses venue payload fields itself.
//
// An adapter may represent several markets (an OTC aggregator quoting many
// venues) but no market is served by more than one adapter, and every adapter
// has a unique name.
type Adapter interface {
	// Markets returns all markets this adapter communicates with.
	Markets() []enum.Market

	// Pairs returns the pairs supported per market.
	Pairs() map[enum.Market][]model.CurrencyPair

	// Name returns the adapter's unique name.
	Name() enum.AdapterName

	// URI returns the endpoint a connector should dial for this adapter.
	URI() string

	// GenerateHeaders builds the handshake headers. Signatures are time-bound,
	// so this is called again on every reconnect.
	GenerateHeaders() (http.Header, error)

	// OnOrdersOut translates new native orders into a venue payload and hands
	// it to the connector.
	OnOrdersOut(ctx context.Context, orders []*model.Order) error

	// OnCancelOrdersOut translates order cancellations into a venue payload
	// and hands it to the connector.
	OnCancelOrdersOut(ctx context.Context, ids []uuid.UUID) error

	// OnPayloadRecvIn handles one raw inbound frame from the connector.
	OnPayloadRecvIn(ctx context.Context, payload []byte) error

	// OnConnectionEstablished runs when the connector (re)connects, typically
	// sending subscription payloads back out.
	OnConnectionEstablished(ctx context.Context) error

	// OnPanic handles a panic signal. Idempotent, never fails.
	OnPanic(msg string)
}
