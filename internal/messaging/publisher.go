// Package messaging публикует пользовательские уведомления в RabbitMQ.
// Доставка fire-and-forget: ошибка публикации логируется и не влияет
// на исход операции, которая уведомление породила.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"film-generator/internal/models"
)

// Config содержит настройки публикации уведомлений.
type Config struct {
	URL       string `env:"RABBITMQ_URL" env-required:"true"`
	QueueName string `env:"NOTIFICATIONS_QUEUE" env-default:"user_notifications"`
}

// NotificationPublisher публикует уведомления в очередь поверхности UI.
// Удовлетворяет контрактам Notifier оркестратора и сервиса согласования.
type NotificationPublisher struct {
	logger    *zap.Logger
	channel   *amqp.Channel
	queueName string
}

// NewNotificationPublisher открывает канал и объявляет очередь уведомлений.
// Параметры очереди должны совпадать с консьюмером.
func NewNotificationPublisher(logger *zap.Logger, conn *amqp.Connection, queueName string) (*NotificationPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &NotificationPublisher{
		logger:    logger.Named("NotificationPublisher").With(zap.String("queue", queueName)),
		channel:   ch,
		queueName: queueName,
	}, nil
}

// Notify публикует уведомление. Ошибки поглощаются: поверхность уведомлений
// не обязана быть надежной, а вызывающий код не должен падать из-за брокера.
func (p *NotificationPublisher) Notify(ctx context.Context, notification models.UserNotification) {
	body, err := json.Marshal(notification)
	if err != nil {
		p.logger.Error("Failed to marshal user notification", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "film-generator",
		},
	)
	if err != nil {
		p.logger.Warn("Failed to publish user notification",
			zap.String("userID", notification.UserID.String()),
			zap.Error(err))
		return
	}

	p.logger.Debug("User notification published",
		zap.String("userID", notification.UserID.String()),
		zap.String("level", string(notification.Level)))
}

// Close закрывает канал публикации.
func (p *NotificationPublisher) Close() error {
	return p.channel.Close()
}
