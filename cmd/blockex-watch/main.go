// blockex-watch polls the exchange and logs, per trader instrument, the
// latest trade price, the best bid/ask and the trader's own open orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blockex/tradeapi-go/pkg/cache"
	"github.com/blockex/tradeapi-go/pkg/config"
	"github.com/blockex/tradeapi-go/pkg/logger"
	"github.com/blockex/tradeapi-go/pkg/orderbook"
	"github.com/blockex/tradeapi-go/pkg/ratelimit"
	"github.com/blockex/tradeapi-go/pkg/shutdown"
	"github.com/blockex/tradeapi-go/pkg/syncgroup"
	"github.com/blockex/tradeapi-go/pkg/tradeapi"
)

const instrumentTTL = 10 * time.Minute

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		interval   = flag.Duration("interval", 5*time.Second, "polling interval")
		rps        = flag.Float64("rps", 5, "request budget per second across all pollers")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		logrus.WithError(err).Fatal("init logger")
	}

	client, err := tradeapi.NewClient(tradeapi.Config{
		APIURL:   cfg.APIURL,
		APIID:    cfg.APIID,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout(),
	})
	if err != nil {
		logrus.WithError(err).Fatal("create client")
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	if _, err := client.Login(ctx); err != nil {
		logrus.WithError(err).Fatal("login")
	}

	manager := shutdown.NewManager()
	manager.OnShutdown(func(ctx context.Context) {
		if err := client.Logout(ctx); err != nil {
			logrus.WithError(err).Warn("logout")
		}
	})

	watcher := &watcher{
		client:      client,
		limiter:     ratelimit.NewTokenBucket(int(*rps), *rps),
		instruments: cache.NewTTL[int64, tradeapi.Instrument](instrumentTTL),
		interval:    *interval,
	}
	if err := watcher.run(ctx); err != nil && ctx.Err() == nil {
		logrus.WithError(err).Error("watcher stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.Shutdown(shutdownCtx)
}

type watcher struct {
	client      *tradeapi.Client
	limiter     *ratelimit.TokenBucket
	instruments *cache.TTL[int64, tradeapi.Instrument]
	interval    time.Duration
}

func (w *watcher) run(ctx context.Context) error {
	instruments, err := w.refreshInstruments(ctx)
	if err != nil {
		return err
	}
	logrus.WithField("count", len(instruments)).Info("watching trader instruments")

	group := syncgroup.New()
	for _, inst := range instruments {
		inst := inst
		group.Add(func() { w.watchInstrument(ctx, inst) })
	}
	group.Run()
	group.Wait()
	return ctx.Err()
}

func (w *watcher) refreshInstruments(ctx context.Context) ([]tradeapi.Instrument, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	instruments, err := w.client.GetTraderInstruments(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range instruments {
		w.instruments.Set(inst.ID, inst)
	}
	return instruments, nil
}

func (w *watcher) watchInstrument(ctx context.Context, inst tradeapi.Instrument) {
	log := logrus.WithField("instrument", inst.Name)

	book := orderbook.NewActiveOrderBook(inst.ID)
	book.OnPlaced(func(o tradeapi.Order) {
		log.WithFields(logrus.Fields{
			"order":    o.ID,
			"side":     o.OfferType.String(),
			"price":    o.Price.String(),
			"quantity": o.Quantity.String(),
		}).Info("order placed")
	})
	book.OnFilled(func(o tradeapi.Order) {
		log.WithField("order", o.ID).Info("order filled")
	})
	book.OnCanceled(func(o tradeapi.Order) {
		log.WithFields(logrus.Fields{
			"order":  o.ID,
			"status": o.Status.String(),
		}).Info("order closed")
	})

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.pollOnce(ctx, inst, book, log)
		select {
		case <-ctx.Done():
			return
		case <-book.C.C():
			log.WithField("open_orders", book.Len()).Debug("order book changed")
		case <-ticker.C:
		}
	}
}

func (w *watcher) pollOnce(ctx context.Context, inst tradeapi.Instrument, book *orderbook.ActiveOrderBook, log *logrus.Entry) {
	// Instrument constraints can change server-side; re-fetch when the cached
	// metadata expires.
	if _, ok := w.instruments.Get(inst.ID); !ok {
		if _, err := w.refreshInstruments(ctx); err != nil {
			log.WithError(err).Warn("refresh instruments")
		}
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	price, ok, err := w.client.GetLatestPrice(ctx, inst.ID)
	if err != nil {
		log.WithError(err).Warn("latest price")
	} else if ok {
		log.WithField("price", price.String()).Info("latest trade")
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	bid, err := w.client.GetHighestBidOrder(ctx, inst.ID)
	if err != nil {
		log.WithError(err).Warn("best bid")
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	ask, err := w.client.GetLowestAskOrder(ctx, inst.ID)
	if err != nil {
		log.WithError(err).Warn("best ask")
	}
	if bid != nil || ask != nil {
		log.WithFields(logrus.Fields{
			"bid": orderPrice(bid),
			"ask": orderPrice(ask),
		}).Info("book edge")
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	orders, err := w.client.GetOrders(ctx, tradeapi.OrdersQuery{InstrumentID: &inst.ID})
	if err != nil {
		log.WithError(err).Warn("trader orders")
		return
	}
	book.Update(orders)
}

func orderPrice(o *tradeapi.Order) string {
	if o == nil {
		return "-"
	}
	return fmt.Sprintf("%s@%s", o.Quantity.String(), o.Price.String())
}
