package services

import (
	"context"
	"errors"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

type notificationPublisher interface {
	PublishPriceDrop(subscriberIDs []uuid.UUID, title string, newPrice float64) error
	PublishRestock(subscriberIDs []uuid.UUID, title string) error
}

// NotificationService отправляет уведомления подписчикам через Kafka.
// Публикация идёт через circuit breaker, чтобы недоступный брокер не тормозил изменение каталога.
type NotificationService struct {
	publisher notificationPublisher
	log       *logger.Logger
	cb        *gobreaker.CircuitBreaker
}

// NewNotificationService создаёт отправителя уведомлений
func NewNotificationService(publisher notificationPublisher, log *logger.Logger, cfg *config.NotifierConfig) *NotificationService {
	maxFailures := uint32(5)
	timeout := 30 * time.Second
	if cfg != nil {
		if cfg.MaxFailures > 0 {
			maxFailures = uint32(cfg.MaxFailures)
		}
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
	}

	settings := gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &NotificationService{
		publisher: publisher,
		log:       log,
		cb:        gobreaker.NewCircuitBreaker(settings),
	}
}

// NotifyPriceDrop сообщает подписчикам новую цену
func (s *NotificationService) NotifyPriceDrop(ctx context.Context, subscriberIDs []uuid.UUID, title string, newPrice float64) error {
	return s.send(func() error {
		return s.publisher.PublishPriceDrop(subscriberIDs, title, newPrice)
	})
}

// NotifyRestock сообщает подписчикам о поступлении товара
func (s *NotificationService) NotifyRestock(ctx context.Context, subscriberIDs []uuid.UUID, title string) error {
	return s.send(func() error {
		return s.publisher.PublishRestock(subscriberIDs, title)
	})
}

func (s *NotificationService) send(publish func() error) error {
	if s.publisher == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, publish()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperror.Unavailable("notification sink is unavailable", err)
	}
	return err
}

// Deliver принимает уведомление из Kafka и передаёт его внешнему каналу доставки
func (s *NotificationService) Deliver(ctx context.Context, event *models.Event) error {
	recipients, _ := event.Data["subscriber_ids"].([]interface{})
	s.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"recipients": len(recipients),
		"product":    event.Data["product_title"],
	}).Info("Notification dispatched")
	return nil
}
