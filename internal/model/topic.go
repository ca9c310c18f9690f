package model

import "main/internal/model/enum"

// Bus topic keys. All keys are comparable values; scoping an enum topic with a
// pair, market or adapter name yields an independent delivery channel per scope.

// AdapterScoped fans an adapter topic out per adapter.
type AdapterScoped struct {
	Topic   enum.AdapterTopic
	Adapter enum.AdapterName
}

// ConnectorScoped fans a connector lifecycle topic out per adapter.
type ConnectorScoped struct {
	Topic   enum.ConnectorTopic
	Adapter enum.AdapterName
}

// MarketScoped fans a broker topic out per market.
type MarketScoped struct {
	Topic  enum.BrokerTopic
	Market enum.Market
}

// PanicScoped is the panic signal key for one (pair, market).
type PanicScoped struct {
	Pair   CurrencyPair
	Market enum.Market
}
