package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/blockex/tradeapi-go/pkg/config"
	"github.com/blockex/tradeapi-go/pkg/logger"
	"github.com/blockex/tradeapi-go/pkg/tradeapi"
)

// blockex-cli logs in with the configured trader credentials, prints the
// trader's instruments and a small market snapshot for the first one, then
// logs out. It is a smoke test for the SDK rather than a trading tool.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	client, err := tradeapi.NewClient(tradeapi.Config{
		APIURL:   cfg.APIURL,
		APIID:    cfg.APIID,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout(),
	})
	if err != nil {
		logrus.Fatalf("create client: %v", err)
	}

	ctx := context.Background()

	if _, err := client.Login(ctx); err != nil {
		logrus.Fatalf("login: %v", err)
	}
	defer func() {
		if err := client.Logout(ctx); err != nil {
			logrus.Warnf("logout: %v", err)
		}
	}()

	instruments, err := client.GetTraderInstruments(ctx)
	if err != nil {
		logrus.Fatalf("get trader instruments: %v", err)
	}
	if len(instruments) == 0 {
		logrus.Info("no instruments available for this trader")
		return
	}

	for _, instrument := range instruments {
		logrus.WithFields(logrus.Fields{
			"id":               instrument.ID,
			"name":             instrument.Name,
			"min_order_amount": instrument.MinOrderAmount,
			"commission":       instrument.CommissionFeePercent,
		}).Info("instrument")
	}

	instrumentID := instruments[0].ID

	if bid, err := client.GetHighestBidOrder(ctx, instrumentID); err != nil {
		logrus.Errorf("highest bid: %v", err)
	} else if bid == nil {
		logrus.Info("no open bids")
	} else {
		logrus.Infof("highest bid: %s (order %d)", bid.Price, bid.ID)
	}

	if ask, err := client.GetLowestAskOrder(ctx, instrumentID); err != nil {
		logrus.Errorf("lowest ask: %v", err)
	} else if ask == nil {
		logrus.Info("no open asks")
	} else {
		logrus.Infof("lowest ask: %s (order %d)", ask.Price, ask.ID)
	}

	if price, ok, err := client.GetLatestPrice(ctx, instrumentID); err != nil {
		logrus.Errorf("latest price: %v", err)
	} else if !ok {
		logrus.Info("instrument has no trades yet")
	} else {
		logrus.Infof("latest price: %s", price)
	}

	orders, err := client.GetOrders(ctx, tradeapi.OrdersQuery{})
	if err != nil {
		logrus.Fatalf("get orders: %v", err)
	}
	logrus.Infof("trader has %d orders", len(orders))
}
