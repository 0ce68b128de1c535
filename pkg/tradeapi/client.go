package tradeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/blockex/tradeapi-go/pkg/httpclient"
)

// Config holds everything needed to construct a Client. There is no default
// base URL: pointing a trading client at a guessed production host is worse
// than failing fast.
type Config struct {
	// APIURL is the base URL of the trade API, e.g. "https://api.blockex.com/".
	APIURL string
	// APIID identifies the partner; it is sent as client_id during login and
	// as the apiID parameter on public endpoints.
	APIID    string
	Username string
	Password string
	// Timeout bounds each HTTP call. Zero means the transport default.
	Timeout time.Duration
}

// Client exposes the trade API operations. Trader-scoped calls go through
// the embedded Session, which keeps the bearer token fresh; public calls hit
// the transport directly with the partner apiID.
type Client struct {
	apiID     string
	transport *httpclient.Client
	session   *Session
	log       *logrus.Entry
}

// NewClient validates cfg and builds a logged-out client. Login happens
// lazily on the first trader-scoped call, or explicitly via Login.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, &ValidationError{Field: "api url", Message: "must not be empty"}
	}

	transport := httpclient.NewClient(cfg.APIURL, cfg.Timeout)
	return &Client{
		apiID:     cfg.APIID,
		transport: transport,
		session: NewSession(transport, Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
			APIID:    cfg.APIID,
		}),
		log: logrus.WithField("component", "tradeapi.client"),
	}, nil
}

// Login authenticates eagerly and returns the access token.
func (c *Client) Login(ctx context.Context) (string, error) {
	return c.session.Login(ctx)
}

// Logout invalidates the current session token, if any.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// OrdersQuery filters GetOrders. Nil/empty fields are omitted from the
// request entirely; an absent filter is not the same as an empty one.
type OrdersQuery struct {
	InstrumentID   *int64
	OrderType      *OrderType
	OfferType      *OfferType
	Status         []OrderStatus
	LoadExecutions *bool
	MaxCount       *int
}

// GetOrders lists the trader's own orders, optionally filtered.
func (c *Client) GetOrders(ctx context.Context, query OrdersQuery) ([]Order, error) {
	values := url.Values{}
	if query.InstrumentID != nil {
		values.Set("instrumentID", strconv.FormatInt(*query.InstrumentID, 10))
	}
	if err := setOrderFilters(values, query.OrderType, query.OfferType, query.Status); err != nil {
		return nil, err
	}
	if query.LoadExecutions != nil {
		values.Set("loadExecutions", strconv.FormatBool(*query.LoadExecutions))
	}
	if query.MaxCount != nil {
		values.Set("maxCount", strconv.Itoa(*query.MaxCount))
	}

	resp, err := c.session.DoAuthorized(ctx, http.MethodGet, EndpointGetOrders, values)
	if err != nil {
		return nil, err
	}

	var orders []Order
	if err := decodeResponse("get orders", resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// MarketOrdersQuery filters GetMarketOrders.
type MarketOrdersQuery struct {
	OrderType *OrderType
	OfferType *OfferType
	Status    []OrderStatus
	MaxCount  *int
}

// GetMarketOrders lists public market orders for an instrument. This is a
// partner endpoint: no bearer token, the apiID travels as a query parameter.
func (c *Client) GetMarketOrders(ctx context.Context, instrumentID int64, query MarketOrdersQuery) ([]Order, error) {
	values := url.Values{}
	values.Set("apiID", c.apiID)
	values.Set("instrumentID", strconv.FormatInt(instrumentID, 10))
	if err := setOrderFilters(values, query.OrderType, query.OfferType, query.Status); err != nil {
		return nil, err
	}
	if query.MaxCount != nil {
		values.Set("maxCount", strconv.Itoa(*query.MaxCount))
	}

	resp, err := c.transport.Do(ctx, http.MethodGet, EndpointGetMarketOrders, &httpclient.RequestOptions{Query: values})
	if err != nil {
		return nil, err
	}

	var orders []Order
	if err := decodeResponse("get market orders", resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder places an order. The call either fully succeeds or returns an
// error; after an error the caller must not assume the order was placed.
func (c *Client) CreateOrder(ctx context.Context, offerType OfferType, orderType OrderType, instrumentID int64, price, quantity decimal.Decimal) error {
	if !offerType.Valid() {
		return &ValidationError{Field: "offer type", Message: offerType.String()}
	}
	if !orderType.Valid() {
		return &ValidationError{Field: "order type", Message: orderType.String()}
	}

	values := url.Values{}
	values.Set("offerType", offerType.String())
	values.Set("orderType", orderType.String())
	values.Set("instrumentID", strconv.FormatInt(instrumentID, 10))
	values.Set("price", price.String())
	values.Set("quantity", quantity.String())

	c.log.WithFields(logrus.Fields{
		"side":       offerType.String(),
		"type":       orderType.String(),
		"instrument": instrumentID,
		"price":      price.String(),
		"quantity":   quantity.String(),
	}).Info("creating order")

	resp, err := c.session.DoAuthorized(ctx, http.MethodPost, EndpointCreateOrder, values)
	if err != nil {
		return err
	}
	return decodeResponse("create order", resp, nil)
}

// CancelOrder cancels one order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	values := url.Values{}
	values.Set("orderID", strconv.FormatInt(orderID, 10))

	c.log.WithField("order", orderID).Info("cancelling order")

	resp, err := c.session.DoAuthorized(ctx, http.MethodPost, EndpointCancelOrder, values)
	if err != nil {
		return err
	}
	return decodeResponse("cancel order", resp, nil)
}

// CancelAllOrders cancels every order of the trader for one instrument.
func (c *Client) CancelAllOrders(ctx context.Context, instrumentID int64) error {
	values := url.Values{}
	values.Set("instrumentID", strconv.FormatInt(instrumentID, 10))

	c.log.WithField("instrument", instrumentID).Info("cancelling all orders")

	resp, err := c.session.DoAuthorized(ctx, http.MethodPost, EndpointCancelAllOrders, values)
	if err != nil {
		return err
	}
	return decodeResponse("cancel all orders", resp, nil)
}

// GetTraderInstruments lists the instruments available to the trader.
func (c *Client) GetTraderInstruments(ctx context.Context) ([]Instrument, error) {
	resp, err := c.session.DoAuthorized(ctx, http.MethodGet, EndpointGetTraderInstruments, nil)
	if err != nil {
		return nil, err
	}

	var instruments []Instrument
	if err := decodeResponse("get trader instruments", resp, &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// GetPartnerInstruments lists the instruments available to the partner.
func (c *Client) GetPartnerInstruments(ctx context.Context) ([]Instrument, error) {
	values := url.Values{}
	values.Set("apiID", c.apiID)

	resp, err := c.transport.Do(ctx, http.MethodGet, EndpointGetPartnerInstruments, &httpclient.RequestOptions{Query: values})
	if err != nil {
		return nil, err
	}

	var instruments []Instrument
	if err := decodeResponse("get partner instruments", resp, &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// TradesHistoryQuery controls GetTradesHistory paging and sorting.
type TradesHistoryQuery struct {
	InstrumentID *int64
	SortBy       string
	SortDesc     *bool
	PageSize     *int
	PageIndex    *int
}

// GetTradesHistory fetches a page of the trade history. The endpoint takes a
// form-encoded body with the partner apiID rather than a bearer token.
func (c *Client) GetTradesHistory(ctx context.Context, query TradesHistoryQuery) (*TradesHistory, error) {
	form := url.Values{}
	form.Set("ApiID", c.apiID)
	if query.InstrumentID != nil {
		form.Set("InstrumentID", strconv.FormatInt(*query.InstrumentID, 10))
	}
	if query.SortBy != "" {
		form.Set("SortBy", query.SortBy)
	}
	if query.SortDesc != nil {
		form.Set("SortDesc", strconv.FormatBool(*query.SortDesc))
	}
	if query.PageSize != nil {
		form.Set("PageSize", strconv.Itoa(*query.PageSize))
	}
	if query.PageIndex != nil {
		form.Set("PageIndex", strconv.Itoa(*query.PageIndex))
	}

	resp, err := c.transport.Do(ctx, http.MethodPost, EndpointGetTradesHistory, &httpclient.RequestOptions{Form: form})
	if err != nil {
		return nil, err
	}

	var history TradesHistory
	if err := decodeResponse("get trades history", resp, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// GetLatestPrice returns the price of the most recent trade for the
// instrument, or false when the instrument has never traded. It queries the
// trade history sorted descending by date with page size 1, which is a
// wasteful way to read one price point; the remote API offers nothing more
// direct.
func (c *Client) GetLatestPrice(ctx context.Context, instrumentID int64) (decimal.Decimal, bool, error) {
	pageSize := 1
	sortDesc := true
	history, err := c.GetTradesHistory(ctx, TradesHistoryQuery{
		InstrumentID: &instrumentID,
		SortBy:       "date",
		SortDesc:     &sortDesc,
		PageSize:     &pageSize,
	})
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	if len(history.Trades) == 0 {
		return decimal.Decimal{}, false, nil
	}
	return history.Trades[0].Price, true, nil
}

// GetHighestBidOrder returns the open bid with the highest price for the
// instrument, or nil when there are no open bids. It inspects at most 1000
// open orders; a book side deeper than that degrades the answer.
func (c *Client) GetHighestBidOrder(ctx context.Context, instrumentID int64) (*Order, error) {
	return c.bookEdgeOrder(ctx, instrumentID, Bid)
}

// GetLowestAskOrder returns the open ask with the lowest price for the
// instrument, or nil when there are no open asks. The 1000-order limit of
// GetHighestBidOrder applies here too.
func (c *Client) GetLowestAskOrder(ctx context.Context, instrumentID int64) (*Order, error) {
	return c.bookEdgeOrder(ctx, instrumentID, Ask)
}

func (c *Client) bookEdgeOrder(ctx context.Context, instrumentID int64, side OfferType) (*Order, error) {
	maxCount := 1000
	orders, err := c.GetMarketOrders(ctx, instrumentID, MarketOrdersQuery{
		OfferType: &side,
		Status:    []OrderStatus{StatusPlaced},
		MaxCount:  &maxCount,
	})
	if err != nil {
		return nil, err
	}

	var best *Order
	for i := range orders {
		order := &orders[i]
		// The server already filters by status; keep the guard anyway so a
		// lax response cannot surface a cancelled order as the book edge.
		if order.Status != StatusPlaced || order.OfferType != side {
			continue
		}
		if best == nil {
			best = order
			continue
		}
		if side == Bid && order.Price.GreaterThan(best.Price) {
			best = order
		}
		if side == Ask && order.Price.LessThan(best.Price) {
			best = order
		}
	}
	return best, nil
}

// setOrderFilters writes the shared order filters into values, validating
// enum arguments before anything reaches the network.
func setOrderFilters(values url.Values, orderType *OrderType, offerType *OfferType, status []OrderStatus) error {
	if orderType != nil {
		if !orderType.Valid() {
			return &ValidationError{Field: "order type", Message: orderType.String()}
		}
		values.Set("orderType", orderType.String())
	}
	if offerType != nil {
		if !offerType.Valid() {
			return &ValidationError{Field: "offer type", Message: offerType.String()}
		}
		values.Set("offerType", offerType.String())
	}
	if len(status) > 0 {
		codes := make([]string, 0, len(status))
		for _, s := range status {
			if !s.Valid() {
				return &ValidationError{Field: "status", Message: s.String()}
			}
			codes = append(codes, s.Code())
		}
		values.Set("status", strings.Join(codes, ","))
	}
	return nil
}

// decodeResponse turns a non-200 status into an *APIRequestError and decodes
// the body into out otherwise. Pass a nil out for endpoints whose body is
// irrelevant on success.
func decodeResponse(op string, resp *resty.Response, out interface{}) error {
	if resp.StatusCode() != http.StatusOK {
		return &APIRequestError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Message:    serverMessage(resp.Body()),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	return nil
}
