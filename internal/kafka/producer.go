package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// publishEvent отправляет событие с ключом key. События одного заказа идут с ключом order_id,
// поэтому попадают в одну партицию и читаются по порядку.
func (p *Producer) publishEvent(topic, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if key == "" {
		key = event.ID.String()
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

func newEvent(eventType models.EventType, data map[string]interface{}) models.Event {
	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func orderData(order *models.Order) map[string]interface{} {
	data := map[string]interface{}{
		"order_id":     order.ID,
		"status":       order.Status,
		"total_amount": order.TotalAmount,
		"currency_id":  order.CurrencyID,
		"is_paid":      order.IsPaid,
	}
	if order.UserID != nil {
		data["user_id"] = *order.UserID
	}
	return data
}

// PublishOrderCreated публикует событие создания заказа
func (p *Producer) PublishOrderCreated(order *models.Order) error {
	return p.publishEvent(p.topics.Orders, order.ID.String(), newEvent(models.EventTypeOrderCreated, orderData(order)))
}

// PublishOrderStatusChanged публикует смену статуса заказа
func (p *Producer) PublishOrderStatusChanged(orderID uuid.UUID, oldStatus, newStatus models.OrderStatus) error {
	return p.publishEvent(p.topics.Orders, orderID.String(), newEvent(models.EventTypeOrderStatusChanged, map[string]interface{}{
		"order_id":   orderID,
		"old_status": oldStatus,
		"new_status": newStatus,
	}))
}

// PublishOrderPaid публикует успешную оплату
func (p *Producer) PublishOrderPaid(order *models.Order) error {
	return p.publishEvent(p.topics.Orders, order.ID.String(), newEvent(models.EventTypeOrderPaid, orderData(order)))
}

// PublishOrderCancelled публикует отмену заказа
func (p *Producer) PublishOrderCancelled(order *models.Order) error {
	return p.publishEvent(p.topics.Orders, order.ID.String(), newEvent(models.EventTypeOrderCancelled, orderData(order)))
}

// PublishPriceDrop отправляет уведомление подписчикам о новой цене
func (p *Producer) PublishPriceDrop(subscriberIDs []uuid.UUID, title string, newPrice float64) error {
	return p.publishEvent(p.topics.Notifications, "", newEvent(models.EventTypePriceDropped, map[string]interface{}{
		"subscriber_ids": subscriberIDs,
		"product_title":  title,
		"new_price":      newPrice,
	}))
}

// PublishRestock отправляет уведомление подписчикам о поступлении товара
func (p *Producer) PublishRestock(subscriberIDs []uuid.UUID, title string) error {
	return p.publishEvent(p.topics.Notifications, "", newEvent(models.EventTypeRestocked, map[string]interface{}{
		"subscriber_ids": subscriberIDs,
		"product_title":  title,
	}))
}
