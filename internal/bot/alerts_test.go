package bot

import (
	"fmt"
	"strings"
	"testing"

	"price-history/internal/domain"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

func TestParseAlertMode(t *testing.T) {
	mode, err := parseAlertMode(nil)
	if err != nil || mode != "status" {
		t.Fatalf("expected default status mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"on"})
	if err != nil || mode != "on" {
		t.Fatalf("expected on mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"OFF"})
	if err != nil || mode != "off" {
		t.Fatalf("expected off mode, got mode=%q err=%v", mode, err)
	}

	if _, err := parseAlertMode([]string{"nope"}); err == nil {
		t.Fatal("expected invalid mode error")
	}
}

func TestAlertDispatcherNotifiesLargeMoves(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, decimal.NewFromInt(10))

	if !dispatcher.Subscribe(10) {
		t.Fatal("expected initial subscribe to return true")
	}
	if !dispatcher.Subscribe(20) {
		t.Fatal("expected initial subscribe to return true")
	}
	if dispatcher.Subscribe(10) {
		t.Fatal("expected duplicate subscribe to return false")
	}

	dispatcher.PublishPrices([]*domain.PriceRecord{
		{Symbol: "BTCUSD", CurrentPrice: decimal.NewFromInt(30000), H24P: decimal.RequireFromString("12.5")},
		{Symbol: "EURUSD", CurrentPrice: decimal.RequireFromString("1.08"), H24P: decimal.RequireFromString("0.2")},
		{Symbol: "LUNAUSD", CurrentPrice: decimal.RequireFromString("0.0001"), H24P: decimal.RequireFromString("-99.9")},
	})

	if len(sender.messages[10]) != 1 || len(sender.messages[20]) != 1 {
		t.Fatalf("expected one message per subscriber, got %+v", sender.messages)
	}
	body := sender.messages[10][0]
	if !strings.Contains(body, "BTCUSD") || !strings.Contains(body, "LUNAUSD") {
		t.Fatalf("expected both large movers in alert: %s", body)
	}
	if strings.Contains(body, "EURUSD") {
		t.Fatalf("small mover must not be alerted: %s", body)
	}
}

func TestAlertDispatcherQuietWithoutMovers(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, decimal.NewFromInt(10))
	dispatcher.Subscribe(10)

	dispatcher.PublishPrices([]*domain.PriceRecord{
		{Symbol: "EURUSD", H24P: decimal.RequireFromString("0.2")},
	})

	if len(sender.messages) != 0 {
		t.Fatalf("expected zero outgoing messages, got %+v", sender.messages)
	}
}

func TestAlertDispatcherUnsubscribe(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, decimal.NewFromInt(10))

	dispatcher.Subscribe(10)
	if !dispatcher.Unsubscribe(10) {
		t.Fatal("expected unsubscribe to return true")
	}
	if dispatcher.Unsubscribe(10) {
		t.Fatal("expected second unsubscribe to return false")
	}

	dispatcher.PublishPrices([]*domain.PriceRecord{
		{Symbol: "BTCUSD", H24P: decimal.NewFromInt(50)},
	})
	if len(sender.messages) != 0 {
		t.Fatalf("expected zero outgoing messages, got %+v", sender.messages)
	}
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var dispatcher *AlertDispatcher
	dispatcher.PublishPrices([]*domain.PriceRecord{
		{Symbol: "BTCUSD", H24P: decimal.NewFromInt(50)},
	})
}

type fakeSender struct {
	messages map[int64][]string
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}

	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", to)
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], fmt.Sprint(what))
	return &tele.Message{}, nil
}
