package bot

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"price-history/internal/domain"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher notifies subscribed chats about instruments whose 24h
// change crossed the configured threshold. It consumes the poller's
// per-cycle snapshots.
type AlertDispatcher struct {
	sender    messageSender
	threshold decimal.Decimal

	mu          sync.RWMutex
	subscribers map[int64]struct{}
}

func NewAlertDispatcher(sender messageSender, threshold decimal.Decimal) *AlertDispatcher {
	return &AlertDispatcher{
		sender:      sender,
		threshold:   threshold,
		subscribers: make(map[int64]struct{}),
	}
}

func (d *AlertDispatcher) Subscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; exists {
		return false
	}
	d.subscribers[chatID] = struct{}{}
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; !exists {
		return false
	}
	delete(d.subscribers, chatID)
	return true
}

func (d *AlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.subscribers[chatID]
	return exists
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// PublishPrices filters a snapshot down to large movers and broadcasts
// them. A nil dispatcher (bot disabled) is a no-op.
func (d *AlertDispatcher) PublishPrices(records []*domain.PriceRecord) {
	if d == nil || d.sender == nil {
		return
	}

	movers := largeMoves(records, d.threshold)
	if len(movers) == 0 {
		return
	}

	chatIDs := d.snapshotSubscribers()
	if len(chatIDs) == 0 {
		return
	}

	msg := formatAlertMessage(movers)
	for _, chatID := range chatIDs {
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			log.Printf("failed sending alert to chat %d: %v", chatID, err)
		}
	}
}

func (d *AlertDispatcher) snapshotSubscribers() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chatIDs := make([]int64, 0, len(d.subscribers))
	for chatID := range d.subscribers {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return chatIDs
}

func largeMoves(records []*domain.PriceRecord, threshold decimal.Decimal) []*domain.PriceRecord {
	if threshold.IsZero() {
		return nil
	}

	movers := make([]*domain.PriceRecord, 0)
	for _, rec := range records {
		if rec.H24P.Abs().GreaterThanOrEqual(threshold) {
			movers = append(movers, rec)
		}
	}
	return movers
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		return "on", nil
	case "off":
		return "off", nil
	case "status":
		return "status", nil
	default:
		return "", fmt.Errorf("invalid mode")
	}
}

func formatAlertMessage(movers []*domain.PriceRecord) string {
	lines := make([]string, 0, len(movers)+1)
	lines = append(lines, "Large 24h moves:")
	for _, rec := range movers {
		lines = append(lines, fmt.Sprintf("%s %s (%s%%)", rec.Symbol, rec.CurrentPrice, rec.H24P))
	}
	return strings.Join(lines, "\n")
}
