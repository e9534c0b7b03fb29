package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"fleetcare-backend/internal/model"
	"fleetcare-backend/internal/status"
	"fleetcare-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending maintenance alerts.
type WorkerPool struct {
	size    int
	jobs    chan status.CriticalAlert
	ledger  store.Ledger
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, ledger store.Ledger, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan status.CriticalAlert, size),
		ledger:  ledger,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing alert for %s", id, alert.Tag)
			wp.broadcastAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a critical maintenance alert for delivery.
func (wp *WorkerPool) Dispatch(alert status.CriticalAlert) {
	wp.jobs <- alert
}

// alertPayload is the JSON body delivered to push subscribers.
type alertPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// broadcastAlert fetches all subscriptions and pushes the alert to each.
// Alerts are fleet-wide: every subscriber hears about every overdue machine.
func (wp *WorkerPool) broadcastAlert(ctx context.Context, alert status.CriticalAlert) {
	subscriptions, err := wp.ledger.Subscriptions(ctx)
	if err != nil {
		log.Printf("Error fetching subscriptions for alert %s: %v", alert.Tag, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(alertPayload{
		Title: "Manutenção vencida",
		Body:  fmt.Sprintf("%s atingiu %.0f%% do intervalo de manutenção", alert.Tag, alert.Percent),
		Tag:   alert.Tag,
	})
	if err != nil {
		log.Printf("Error encoding alert payload for %s: %v", alert.Tag, err)
		return
	}

	log.Printf("Sending %d notifications for %s", len(subscriptions), alert.Tag)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Push services answer 404 or 410 for endpoints that no longer exist.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.ledger.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
