package tradeapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OfferType is the side of an order: Bid (buy) or Ask (sell).
type OfferType int

const (
	Bid OfferType = 1
	Ask OfferType = 2
)

// String returns the name the API expects in query strings.
func (t OfferType) String() string {
	switch t {
	case Bid:
		return "Bid"
	case Ask:
		return "Ask"
	default:
		return fmt.Sprintf("OfferType(%d)", int(t))
	}
}

// Valid reports whether t is one of the enumerated offer types.
func (t OfferType) Valid() bool {
	return t == Bid || t == Ask
}

func (t *OfferType) UnmarshalJSON(data []byte) error {
	v, err := parseWireInt(data)
	if err != nil {
		return fmt.Errorf("offer type: %w", err)
	}
	*t = OfferType(v)
	return nil
}

// OrderType determines how an order executes.
type OrderType int

const (
	Limit  OrderType = 1
	Market OrderType = 2
	Stop   OrderType = 3
)

// String returns the name the API expects in query strings.
func (t OrderType) String() string {
	switch t {
	case Limit:
		return "Limit"
	case Market:
		return "Market"
	case Stop:
		return "Stop"
	default:
		return fmt.Sprintf("OrderType(%d)", int(t))
	}
}

// Valid reports whether t is one of the enumerated order types.
func (t OrderType) Valid() bool {
	return t >= Limit && t <= Stop
}

func (t *OrderType) UnmarshalJSON(data []byte) error {
	v, err := parseWireInt(data)
	if err != nil {
		return fmt.Errorf("order type: %w", err)
	}
	*t = OrderType(v)
	return nil
}

// OrderStatus is the server-side lifecycle state of an order.
type OrderStatus int

const (
	StatusPending           OrderStatus = 10
	StatusFailed            OrderStatus = 15
	StatusPlaced            OrderStatus = 20
	StatusRejected          OrderStatus = 30
	StatusCancelled         OrderStatus = 40
	StatusPartiallyExecuted OrderStatus = 50
	StatusExecuted          OrderStatus = 60
)

// Code returns the numeric code the API expects in status filters.
func (s OrderStatus) Code() string {
	return strconv.Itoa(int(s))
}

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusFailed:
		return "Failed"
	case StatusPlaced:
		return "Placed"
	case StatusRejected:
		return "Rejected"
	case StatusCancelled:
		return "Cancelled"
	case StatusPartiallyExecuted:
		return "PartiallyExecuted"
	case StatusExecuted:
		return "Executed"
	default:
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
}

// Valid reports whether s is one of the enumerated statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFailed, StatusPlaced, StatusRejected,
		StatusCancelled, StatusPartiallyExecuted, StatusExecuted:
		return true
	}
	return false
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	v, err := parseWireInt(data)
	if err != nil {
		return fmt.Errorf("order status: %w", err)
	}
	*s = OrderStatus(v)
	return nil
}

// intish accepts JSON integers encoded either as numbers or as strings.
// The API is inconsistent about which one it emits.
type intish int64

func (i *intish) UnmarshalJSON(data []byte) error {
	v, err := parseWireInt(data)
	if err != nil {
		return err
	}
	*i = intish(v)
	return nil
}

func parseWireInt(data []byte) (int64, error) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return 0, nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strconv.ParseInt(s, 10, 64)
}

// Order is a server-authoritative view of a trader or market order.
// Price and quantity fields are exact decimals; the API serializes them
// either as JSON strings or as bare numbers and decimal.Decimal parses the
// literal text in both cases, so no binary-float precision is lost.
type Order struct {
	ID              int64           `json:"orderID"`
	Price           decimal.Decimal `json:"price"`
	InitialQuantity decimal.Decimal `json:"initialQuantity"`
	Quantity        decimal.Decimal `json:"quantity"`
	DateCreated     string          `json:"dateCreated"`
	OfferType       OfferType       `json:"offerType"`
	Type            OrderType       `json:"type"`
	Status          OrderStatus     `json:"status"`
	InstrumentID    int64           `json:"instrumentID"`
	Trades          []Trade         `json:"trades,omitempty"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type wire Order
	aux := struct {
		*wire
		ID           intish `json:"orderID"`
		InstrumentID intish `json:"instrumentID"`
	}{wire: (*wire)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.ID = int64(aux.ID)
	o.InstrumentID = int64(aux.InstrumentID)
	return nil
}

// Instrument is a tradable pair together with its trading constraints.
type Instrument struct {
	ID                   int64           `json:"id"`
	Description          string          `json:"description"`
	Name                 string          `json:"name"`
	BaseCurrencyID       int64           `json:"baseCurrencyID"`
	QuoteCurrencyID      int64           `json:"quoteCurrencyID"`
	MinOrderAmount       decimal.Decimal `json:"minOrderAmount"`
	CommissionFeePercent decimal.Decimal `json:"commissionFeePercent"`
}

// Trade is a single executed trade from the trade history.
type Trade struct {
	ID              int64           `json:"tradeID"`
	Price           decimal.Decimal `json:"price"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Quantity        decimal.Decimal `json:"quantity"`
	TradeDate       string          `json:"tradeDate"`
	CurrencyID      int64           `json:"currencyID"`
	QuoteCurrencyID int64           `json:"quoteCurrencyID"`
	InstrumentID    int64           `json:"instrumentID"`
}

func (t *Trade) UnmarshalJSON(data []byte) error {
	type wire Trade
	aux := struct {
		*wire
		ID intish `json:"tradeID"`
	}{wire: (*wire)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.ID = int64(aux.ID)
	return nil
}

// TradesHistory is a page of the trade history.
type TradesHistory struct {
	Trades     []Trade `json:"trades"`
	TotalCount int64   `json:"totalCount"`
}
