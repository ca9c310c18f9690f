package enum

// AdapterTopic is an event published by a venue adapter.
type AdapterTopic uint8

const (
	_adapter_topic_beg AdapterTopic = iota
	TopicBookUpdate
	TopicQuoteUpdate
	TopicOrderUpdate
	TopicTradeUpdate
	TopicPayloadOut
	_adapter_topic_end
)

func (t AdapterTopic) IsAvailable() bool {
	return t > _adapter_topic_beg && t < _adapter_topic_end
}

// BrokerTopic is an event published by the broker for strategies and adapters.
type BrokerTopic uint8

const (
	_broker_topic_beg BrokerTopic = iota
	TopicOrdersOut
	TopicCancelOrdersOut
	TopicOrderStatusUpdate
	TopicBrokerBookUpdate
	TopicBrokerQuoteUpdate
	TopicBrokerTradeUpdate
	TopicPanic
	_broker_topic_end
)

func (t BrokerTopic) IsAvailable() bool {
	return t > _broker_topic_beg && t < _broker_topic_end
}

// ConnectorTopic is a connection lifecycle event published by a connector.
type ConnectorTopic uint8

const (
	_connector_topic_beg ConnectorTopic = iota
	TopicConnectionEstablished
	TopicPayloadIn
	_connector_topic_end
)

func (t ConnectorTopic) IsAvailable() bool {
	return t > _connector_topic_beg && t < _connector_topic_end
}

// UpdateType classifies an order status update.
// Rejected, Canceled and Done are mutually exclusive terminal kinds.
type UpdateType uint8

const (
	_update_type_beg UpdateType = iota
	UpdateAccepted
	UpdateTrade
	UpdateRejected
	UpdateCanceled
	UpdateDone
	UpdateGeneralInfo
	_update_type_end
)

func (t UpdateType) IsAvailable() bool {
	return t > _update_type_beg && t < _update_type_end
}

func (t UpdateType) String() string {
	switch t {
	case UpdateAccepted:
		return "ACCEPTED"
	case UpdateTrade:
		return "TRADE"
	case UpdateRejected:
		return "REJECTED"
	case UpdateCanceled:
		return "CANCELED"
	case UpdateDone:
		return "DONE"
	case UpdateGeneralInfo:
		return "GENERAL_INFO"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the update kind ends an order's life.
func (t UpdateType) Terminal() bool {
	switch t {
	case UpdateRejected, UpdateCanceled, UpdateDone:
		return true
	default:
		return false
	}
}
