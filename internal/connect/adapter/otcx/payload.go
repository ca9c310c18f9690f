package otcx

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// wireTimeFormat is the venue's ISO 8601 timestamp layout.
const wireTimeFormat = "2006-01-02T15:04:05.000000Z"

type envelope struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	TS        string            `json:"ts,omitempty"`
	Data      []json.RawMessage `json:"data,omitempty"`
	Error     *wireError        `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

type bookLevel struct {
	VWAP decimal.Decimal `json:"VWAP"`
	Size decimal.Decimal `json:"Size"`
}

type marketStatus struct {
	Status string `json:"Status"`
}

// marketDataEntry is one stream element of a MarketDataSnapshot message.
// Bids and Offers are aggregated size buckets, index 0 is the top of book
// and index 1 the configured trade size bucket.
type marketDataEntry struct {
	Symbol       string                  `json:"Symbol"`
	Markets      map[string]marketStatus `json:"Markets"`
	Bids         []bookLevel             `json:"Bids"`
	Offers       []bookLevel             `json:"Offers"`
	ExchangeTime string                  `json:"ExchangeTime"`
}

// executionEntry is one element of an ExecutionReport message.
type executionEntry struct {
	ClOrdID      string          `json:"ClOrdID"`
	ExecType     string          `json:"ExecType"`
	OrdStatus    string          `json:"OrdStatus"`
	OrdRejReason string          `json:"OrdRejReason"`
	Symbol       string          `json:"Symbol"`
	Side         string          `json:"Side"`
	Price        decimal.Decimal `json:"Price"`
	OrderQty     decimal.Decimal `json:"OrderQty"`
	CumQty       decimal.Decimal `json:"CumQty"`
	CumAmt       decimal.Decimal `json:"CumAmt"`
	CumFee       decimal.Decimal `json:"CumFee"`
	LastQty      decimal.Decimal `json:"LastQty"`
	LastAmt      decimal.Decimal `json:"LastAmt"`
	LastFee      decimal.Decimal `json:"LastFee"`
	Markets      []string        `json:"Markets"`
}

type orderRequest struct {
	ClOrdID       string   `json:"ClOrdID"`
	OrigClOrdID   string   `json:"OrigClOrdID,omitempty"`
	Markets       []string `json:"Markets"`
	OrdType       string   `json:"OrdType"`
	OrderQty      float64  `json:"OrderQty"`
	Side          string   `json:"Side"`
	Symbol        string   `json:"Symbol"`
	TimeInForce   string   `json:"TimeInForce"`
	SubAccount    string   `json:"SubAccount,omitempty"`
	Price         float64  `json:"Price"`
	CancelSession string   `json:"CancelSessionID,omitempty"`
	EndTime       string   `json:"EndTime,omitempty"`
	TransactTime  string   `json:"TransactTime"`
}

type cancelRequest struct {
	ClOrdID      string `json:"ClOrdID"`
	OrigClOrdID  string `json:"OrigClOrdID"`
	TransactTime string `json:"TransactTime"`
}

type outboundOrders struct {
	Type     string         `json:"type"`
	Comments string         `json:"Comments,omitempty"`
	Data     []orderRequest `json:"data"`
}

type outboundCancels struct {
	Type string          `json:"type"`
	Data []cancelRequest `json:"data"`
}

type subscriptionStream struct {
	Throttle    string   `json:"Throttle,omitempty"`
	Name        string   `json:"name"`
	Symbol      string   `json:"Symbol,omitempty"`
	Markets     []string `json:"Markets,omitempty"`
	SizeBuckets []string `json:"SizeBuckets,omitempty"`
	FeeMode     string   `json:"FeeMode,omitempty"`
	User        string   `json:"User,omitempty"`
	SendMarkets bool     `json:"SendMarkets,omitempty"`
}

type subscription struct {
	ReqID   int64                `json:"reqid"`
	Type    string               `json:"type"`
	Streams []subscriptionStream `json:"streams"`
}
