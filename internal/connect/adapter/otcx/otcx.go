// Package otcx adapts the OTCX institutional trading gateway to the internal
// event model. The venue speaks JSON over a single authenticated websocket,
// multiplexing market data snapshots and execution reports.
package otcx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrDuplicateReqID = errors.New("otcx: duplicate request id")
	ErrInvalidRequest = errors.New("otcx: invalid request")
	ErrVenue          = errors.New("otcx: venue error")
	ErrBadPayload     = errors.New("otcx: malformed payload")
)

const wsPath = "/ws/v1"

var sideToWire = map[enum.Side]string{
	enum.SideBuy:  "Buy",
	enum.SideSell: "Sell",
}

// OrdStatus values under which the venue still considers an order live.
var liveStatuses = map[string]struct{}{
	"New":             {},
	"PartiallyFilled": {},
	"PendingCancel":   {},
}

// Settings configures one OTCX session.
type Settings struct {
	// Host of the websocket gateway, e.g. "gw-1.sandbox.otcx.io".
	Host string
	// APIKey and APISecret authenticate the websocket handshake.
	APIKey    string
	APISecret string
	// User scopes the execution report subscription.
	User string
	// SubAccount tags outgoing orders.
	SubAccount string
	// Markets routed through this adapter. No market may be assigned to
	// another adapter in the same engine.
	Markets []enum.Market
	// Pairs and Sizes configure the market data subscriptions, index-aligned.
	Pairs []model.CurrencyPair
	Sizes []float64
	// Trading enables order entry.
	Trading bool
}

// OTCX implements adapter.Adapter for the OTCX gateway.
type OTCX struct {
	ps  *bus.PubSub
	cfg Settings
	uri string
	now func() time.Time

	reqID atomic.Int64

	mu        sync.Mutex
	trading   bool
	sessionID string
	sent      map[uuid.UUID]struct{}
}

// New validates the settings and builds the adapter.
func New(ps *bus.PubSub, cfg Settings) (*OTCX, error) {
	if cfg.Host == "" {
		return nil, errors.New("otcx: host not set")
	}
	if len(cfg.Pairs) != len(cfg.Sizes) {
		return nil, errors.Errorf("otcx: %d pairs but %d sizes", len(cfg.Pairs), len(cfg.Sizes))
	}
	if len(cfg.Markets) == 0 {
		return nil, errors.New("otcx: no markets assigned")
	}
	return &OTCX{
		ps:      ps,
		cfg:     cfg,
		uri:     "wss://" + cfg.Host + wsPath,
		now:     time.Now,
		trading: cfg.Trading,
		sent:    make(map[uuid.UUID]struct{}),
	}, nil
}

// WithClock overrides the wall clock used for timestamps and signatures.
func (o *OTCX) WithClock(now func() time.Time) *OTCX {
	o.now = now
	return o
}

func (o *OTCX) Name() enum.AdapterName { return enum.AdapterOtcx }

func (o *OTCX) URI() string { return o.uri }

func (o *OTCX) Markets() []enum.Market {
	out := make([]enum.Market, len(o.cfg.Markets))
	copy(out, o.cfg.Markets)
	return out
}

func (o *OTCX) Pairs() map[enum.Market][]model.CurrencyPair {
	out := make(map[enum.Market][]model.CurrencyPair, len(o.cfg.Markets))
	for _, market := range o.cfg.Markets {
		pairs := make([]model.CurrencyPair, len(o.cfg.Pairs))
		copy(pairs, o.cfg.Pairs)
		out[market] = pairs
	}
	return out
}

// GenerateHeaders signs a fresh timestamp so each connection attempt carries
// a valid time-bound signature.
func (o *OTCX) GenerateHeaders() (http.Header, error) {
	if o.cfg.APIKey == "" || o.cfg.APISecret == "" {
		return nil, errors.New("otcx: api credentials not set")
	}
	ts := o.now().UTC().Format("2006-01-02T15:04:05.000000Z")
	payload := "GET\n" + ts + "\n" + o.cfg.Host + "\n" + wsPath

	mac := hmac.New(sha256.New, []byte(o.cfg.APISecret))
	mac.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	header := http.Header{}
	header.Set("OTCX-KEY", o.cfg.APIKey)
	header.Set("OTCX-SIGN", signature)
	header.Set("OTCX-TS", ts)
	return header, nil
}

// OnOrdersOut serializes orders as NewOrderSingle requests. Order ids are
// remembered so inbound execution reports for foreign orders on the same
// account can be filtered out.
func (o *OTCX) OnOrdersOut(ctx context.Context, out []*model.Order) error {
	o.mu.Lock()
	if !o.trading {
		o.mu.Unlock()
		return nil
	}
	for _, ord := range out {
		o.sent[ord.ID] = struct{}{}
	}
	session := o.sessionID
	o.mu.Unlock()

	payload, err := o.ordersPayload("NewOrderSingle", out, nil, session)
	if err != nil {
		return err
	}
	o.publishOut(payload)
	return nil
}

// OnCancelOrdersOut serializes an OrderCancelRequest per order id.
func (o *OTCX) OnCancelOrdersOut(ctx context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	if !o.trading {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	ts := o.now().UTC().Format(wireTimeFormat)
	out := outboundCancels{Type: "OrderCancelRequest", Data: make([]cancelRequest, 0, len(ids))}
	for _, id := range ids {
		out.Data = append(out.Data, cancelRequest{
			ClOrdID:      uuid.NewString(),
			OrigClOrdID:  id.String(),
			TransactTime: ts,
		})
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "marshal cancel request")
	}
	o.publishOut(payload)
	return nil
}

// OnCancelReplaceOrdersOut atomically replaces resting orders, index-aligned
// with their replacements.
func (o *OTCX) OnCancelReplaceOrdersOut(ctx context.Context, origIDs []uuid.UUID, out []*model.Order) error {
	if len(origIDs) != len(out) {
		return errors.Errorf("otcx: %d originals but %d replacements", len(origIDs), len(out))
	}
	o.mu.Lock()
	if !o.trading {
		o.mu.Unlock()
		return nil
	}
	for _, ord := range out {
		o.sent[ord.ID] = struct{}{}
	}
	session := o.sessionID
	o.mu.Unlock()

	payload, err := o.ordersPayload("OrderCancelReplaceRequest", out, origIDs, session)
	if err != nil {
		return err
	}
	o.publishOut(payload)
	return nil
}

// OnConnectionEstablished resubscribes market data and execution reports.
// Called on every (re)connection, the venue drops subscriptions with the
// socket.
func (o *OTCX) OnConnectionEstablished(ctx context.Context) error {
	for i, pair := range o.cfg.Pairs {
		payload, err := o.snapshotSubscription(pair, o.cfg.Sizes[i])
		if err != nil {
			return err
		}
		o.publishOut(payload)
	}
	payload, err := o.executionSubscription()
	if err != nil {
		return err
	}
	o.publishOut(payload)
	return nil
}

// OnPanic permanently disables order entry on this adapter.
func (o *OTCX) OnPanic(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.trading {
		o.trading = false
		logs.Errorf("otcx order entry disabled: %s", msg)
	}
}

// Trading reports whether order entry is enabled.
func (o *OTCX) Trading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trading
}

// OnPayloadRecvIn parses one inbound frame and republishes it as a typed
// event.
func (o *OTCX) OnPayloadRecvIn(ctx context.Context, payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return errors.Wrap(ErrBadPayload, err.Error())
	}
	switch env.Type {
	case "MarketDataSnapshot":
		return o.handleMarketData(env)
	case "ExecutionReport":
		return o.handleExecutionReport(env)
	case "hello":
		o.mu.Lock()
		o.sessionID = env.SessionID
		o.mu.Unlock()
		logs.Infof("otcx session %s established", env.SessionID)
		return nil
	case "error":
		return o.handleError(env)
	default:
		return errors.Wrapf(ErrBadPayload, "unknown message type %q", env.Type)
	}
}

func (o *OTCX) handleError(env envelope) error {
	if env.Error == nil {
		return ErrBadPayload
	}
	switch env.Error.Code {
	case 2:
		return errors.Wrap(ErrDuplicateReqID, env.Error.Message)
	case 1:
		return errors.Wrap(ErrInvalidRequest, env.Error.Message)
	default:
		return errors.Wrapf(ErrVenue, "code %d: %s", env.Error.Code, env.Error.Message)
	}
}

// handleMarketData turns each online stream entry into a Quote. Index 0 of
// the size buckets is the top of book, index 1 the configured trade size.
func (o *OTCX) handleMarketData(env envelope) error {
	for _, raw := range env.Data {
		var entry marketDataEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return errors.Wrap(ErrBadPayload, err.Error())
		}
		if len(entry.Markets) != 1 {
			return errors.Wrapf(ErrBadPayload, "expected one market per stream, got %d", len(entry.Markets))
		}
		var (
			name   string
			status marketStatus
		)
		for name, status = range entry.Markets {
		}
		if status.Status != "Online" {
			logs.Infof("otcx reports market %s status %s", name, status.Status)
			continue
		}
		market, ok := enum.ParseMarket(name)
		if !ok {
			return errors.Wrapf(ErrBadPayload, "unknown market %q", name)
		}
		pair, err := model.PairFromString(entry.Symbol)
		if err != nil {
			return errors.Wrapf(ErrBadPayload, "symbol %q: %s", entry.Symbol, err)
		}
		if len(entry.Bids) < 2 || len(entry.Offers) < 2 {
			return errors.Wrapf(ErrBadPayload, "expected 2 size buckets, got %d bids and %d offers",
				len(entry.Bids), len(entry.Offers))
		}
		ts, err := time.Parse(wireTimeFormat, entry.ExchangeTime)
		if err != nil {
			return errors.Wrap(ErrBadPayload, err.Error())
		}
		quote := model.Quote{
			BidPrice:    entry.Bids[1].VWAP.InexactFloat64(),
			AskPrice:    entry.Offers[1].VWAP.InexactFloat64(),
			TOBBidPrice: entry.Bids[0].VWAP.InexactFloat64(),
			TOBAskPrice: entry.Offers[0].VWAP.InexactFloat64(),
			Market:      market,
			Pair:        pair,
			Size:        entry.Bids[1].Size.InexactFloat64(),
			Timestamp:   ts,
		}
		o.ps.Publish(model.AdapterScoped{Topic: enum.TopicQuoteUpdate, Adapter: o.Name()}, quote)
	}
	return nil
}

// handleExecutionReport maps venue execution reports to order status updates.
// Reports for client order ids this adapter never sent are dropped, the
// account is shared with other systems.
func (o *OTCX) handleExecutionReport(env envelope) error {
	updateTime, err := time.Parse(wireTimeFormat, env.TS)
	if err != nil {
		return errors.Wrap(ErrBadPayload, err.Error())
	}
	for _, raw := range env.Data {
		var entry executionEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return errors.Wrap(ErrBadPayload, err.Error())
		}
		id, err := uuid.Parse(entry.ClOrdID)
		if err != nil {
			continue
		}
		o.mu.Lock()
		_, mine := o.sent[id]
		o.mu.Unlock()
		if !mine {
			continue
		}

		update := model.OrderStatusUpdate{
			ID:         id,
			UpdateTime: updateTime,
		}
		switch entry.ExecType {
		case "New":
			update.UpdateType = enum.UpdateAccepted
		case "Rejected":
			update.UpdateType = enum.UpdateRejected
			update.RejectReason = entry.OrdRejReason
			if update.RejectReason == "" {
				update.RejectReason = "reject reason missing"
			}
			update.Comment = "otcx order status is " + entry.OrdStatus
		case "ReplaceRejected":
			update.UpdateType = enum.UpdateGeneralInfo
			update.Comment = "replace rejected"
		case "Canceled", "Replaced":
			update.UpdateType = enum.UpdateCanceled
		case "DoneForDay":
			update.UpdateType = enum.UpdateDone
		case "Trade":
			update.UpdateType = enum.UpdateTrade
			o.ps.Publish(model.AdapterScoped{Topic: enum.TopicTradeUpdate, Adapter: o.Name()}, model.Trade{
				ID:     id,
				Size:   entry.LastQty.InexactFloat64(),
				Amount: entry.LastAmt.InexactFloat64(),
				Fee:    entry.LastFee.InexactFloat64(),
			})
		default:
			update.UpdateType = enum.UpdateGeneralInfo
			update.Comment = "otcx order status is " + entry.OrdStatus
		}

		update.Size = entry.OrderQty.InexactFloat64()
		update.CumFilledSize = entry.CumQty.InexactFloat64()
		update.CumFilledAmount = entry.CumAmt.InexactFloat64()
		update.CumFees = entry.CumFee.InexactFloat64()
		if side, ok := enum.ParseSide(entry.Side); ok {
			update.Side = side
		}
		_, update.Live = liveStatuses[entry.OrdStatus]
		update.Market = o.reportMarket(entry.Markets)
		if entry.Symbol != "" {
			if pair, err := model.PairFromString(entry.Symbol); err == nil {
				update.Pair = pair
			}
		}
		update.LimitPrice = entry.Price.InexactFloat64()

		o.ps.Publish(model.AdapterScoped{Topic: enum.TopicOrderUpdate, Adapter: o.Name()}, update)
	}
	return nil
}

// reportMarket resolves a report's market list. Aggregate reports spanning
// several venues are attributed to the gateway itself.
func (o *OTCX) reportMarket(markets []string) enum.Market {
	if len(markets) == 1 {
		if market, ok := enum.ParseMarket(markets[0]); ok {
			return market
		}
	}
	return enum.MarketOtcx
}

func (o *OTCX) publishOut(payload []byte) {
	o.ps.Publish(model.AdapterScoped{Topic: enum.TopicPayloadOut, Adapter: o.Name()}, payload)
}

func (o *OTCX) ordersPayload(reqType string, out []*model.Order, origIDs []uuid.UUID, session string) ([]byte, error) {
	now := o.now().UTC()
	ts := now.Format(wireTimeFormat)
	req := outboundOrders{Type: reqType, Data: make([]orderRequest, 0, len(out))}
	if reqType == "OrderCancelReplaceRequest" {
		req.Comments = "cancel replace"
	}
	for i, ord := range out {
		side, ok := sideToWire[ord.Side]
		if !ok {
			return nil, errors.Errorf("otcx: order %s has no side", ord.ID)
		}
		entry := orderRequest{
			ClOrdID:       ord.ID.String(),
			Markets:       []string{string(ord.Market)},
			OrdType:       "Limit",
			OrderQty:      ord.Size,
			Side:          side,
			Symbol:        ord.Pair.String(),
			TimeInForce:   "GoodTillCancel",
			SubAccount:    o.cfg.SubAccount,
			Price:         ord.LimitPrice,
			CancelSession: session,
			TransactTime:  ts,
		}
		if ord.Timeout > 0 {
			entry.EndTime = now.Add(ord.Timeout).Format(wireTimeFormat)
		}
		if origIDs != nil {
			entry.OrigClOrdID = origIDs[i].String()
		}
		req.Data = append(req.Data, entry)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s", reqType)
	}
	return payload, nil
}

func (o *OTCX) snapshotSubscription(pair model.CurrencyPair, size float64) ([]byte, error) {
	streams := make([]subscriptionStream, 0, len(o.cfg.Markets))
	for _, market := range o.cfg.Markets {
		streams = append(streams, subscriptionStream{
			Throttle:    "1ns",
			Name:        "MarketDataSnapshot",
			Symbol:      pair.String(),
			Markets:     []string{string(market)},
			SizeBuckets: []string{"0", strconv.FormatFloat(size, 'g', -1, 64)},
			FeeMode:     "Taker",
		})
	}
	payload, err := json.Marshal(subscription{
		ReqID:   o.reqID.Add(1),
		Type:    "subscribe",
		Streams: streams,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal snapshot subscription")
	}
	return payload, nil
}

func (o *OTCX) executionSubscription() ([]byte, error) {
	payload, err := json.Marshal(subscription{
		ReqID: o.reqID.Add(1),
		Type:  "subscribe",
		Streams: []subscriptionStream{{
			Name:        "ExecutionReport",
			User:        o.cfg.User,
			SendMarkets: true,
		}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal execution subscription")
	}
	return payload, nil
}
