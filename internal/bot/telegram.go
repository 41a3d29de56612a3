package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"price-history/internal/domain"
	"price-history/internal/repository"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

type PriceQuerier interface {
	GetPriceByInstrument(ctx context.Context, symbol string) (*domain.PriceRecord, error)
}

type RateQuerier interface {
	GetConversionTable(ctx context.Context, baseAsset string) (*domain.AssetRateTable, error)
}

func StartTelegramBot(token string, priceService PriceQuerier, rateService RateQuerier, moveThreshold decimal.Decimal) *AlertDispatcher {
	if token == "" {
		log.Println("Telegram bot token not configured, skipping bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b, moveThreshold)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /price BTCUSD")
		}
		symbol := strings.ToUpper(args[0])
		record, err := priceService.GetPriceByInstrument(context.Background(), symbol)
		if errors.Is(err, repository.ErrRecordNotFound) {
			return c.Send(fmt.Sprintf("Unknown instrument: %s", symbol))
		}
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", symbol, err))
		}
		return c.Send(formatPriceRecord(record))
	})

	b.Handle("/rate", func(c tele.Context) error {
		args := c.Args()
		if len(args) < 2 {
			return c.Send("Usage: /rate USD BTC")
		}
		base := strings.ToUpper(args[0])
		quote := strings.ToUpper(args[1])

		table, err := rateService.GetConversionTable(context.Background(), base)
		if errors.Is(err, repository.ErrTableNotFound) {
			return c.Send(fmt.Sprintf("No conversion table for base asset: %s", base))
		}
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching rates for %s: %v", base, err))
		}

		rate, ok := table.Rates[quote]
		if !ok {
			return c.Send(fmt.Sprintf("No rate from %s to %s", base, quote))
		}
		return c.Send(formatRate(base, quote, rate, table.CalculatedAt))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Large move alerts enabled for this chat.")
			}
			return c.Send("Large move alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Large move alerts disabled for this chat.")
			}
			return c.Send("Large move alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func formatPriceRecord(rec *domain.PriceRecord) string {
	return fmt.Sprintf(
		"%s\nPrice: %s\n24h Change: %s%%\n24h: %s\n7d: %s\n1m: %s\n3m: %s",
		rec.Symbol,
		rec.CurrentPrice,
		rec.H24P,
		rec.H24.Price,
		rec.D7.Price,
		rec.M1.Price,
		rec.M3.Price,
	)
}

func formatRate(base, quote string, rate domain.RateVector, calculatedAt time.Time) string {
	return fmt.Sprintf(
		"1 %s = %s %s\n24h ago: %s\n7d ago: %s\nCalculated: %s",
		base,
		rate.Current,
		quote,
		rate.H24,
		rate.D7,
		calculatedAt.UTC().Format(time.RFC822),
	)
}
