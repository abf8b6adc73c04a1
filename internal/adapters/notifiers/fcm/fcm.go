package fcm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/notify"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Sender es la parte de *messaging.Client que usamos.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Notifier publica avisos como push a un topic de FCM (los dispositivos del
// hogar se suscriben al topic).
type Notifier struct {
	sender Sender
	topic  string
	log    logger.Logger
	now    func() time.Time
}

// New inicializa Firebase con un archivo de credenciales de service account.
func New(ctx context.Context, credentialsPath, topic string, log logger.Logger) (*Notifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("fcm: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: messaging client: %w", err)
	}
	return NewWithSender(client, topic, log), nil
}

func NewWithSender(sender Sender, topic string, log logger.Logger) *Notifier {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "pet-care"
	}
	return &Notifier{
		sender: sender,
		topic:  topic,
		log:    logger.OrNop(log),
		now:    time.Now,
	}
}

func (n *Notifier) Notify(ctx context.Context, x notify.Notice) {
	msg := n.message(x)
	id, err := n.sender.Send(ctx, msg)
	if err != nil {
		n.log.Warn("fcm push failed", map[string]any{
			"topic": n.topic,
			"class": x.Class,
			"error": err.Error(),
		})
		return
	}
	n.log.Debug("fcm push sent", map[string]any{"topic": n.topic, "message_id": id})
}

func (n *Notifier) message(x notify.Notice) *messaging.Message {
	priority := "normal"
	if x.Severity == notify.SeverityError || x.Severity == notify.SeverityWarning {
		priority = "high"
	}

	return &messaging.Message{
		Topic: n.topic,
		Notification: &messaging.Notification{
			Title: x.Title,
			Body:  x.Message,
		},
		Data: map[string]string{
			"type":      "notice",
			"severity":  string(x.Severity),
			"class":     x.Class,
			"timestamp": fmt.Sprintf("%d", n.now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				ChannelID: "pet_care_notices",
			},
		},
	}
}
