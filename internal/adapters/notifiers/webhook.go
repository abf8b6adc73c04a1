package notifiers

import (
	"context"
	"sync"
	"time"

	"pet-care-tracker/internal/platform/httpclient"
	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/notify"
)

type webhookPayload struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	Class    string    `json:"class,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Webhook publica cada aviso como JSON en una URL. El POST corre en su
// propia goroutine para no frenar la cola de escrituras.
type Webhook struct {
	client *httpclient.Client
	url    string
	log    logger.Logger
	wg     sync.WaitGroup
}

func NewWebhook(client *httpclient.Client, url string, log logger.Logger) (*Webhook, error) {
	if err := httpclient.ValidateURL(url); err != nil {
		return nil, err
	}
	if client == nil {
		client = httpclient.New(0)
	}
	return &Webhook{client: client, url: url, log: logger.OrNop(log)}, nil
}

func (w *Webhook) Notify(ctx context.Context, x notify.Notice) {
	payload := webhookPayload{
		Title:    x.Title,
		Message:  x.Message,
		Severity: string(x.Severity),
		Class:    x.Class,
		SentAt:   time.Now().UTC(),
	}
	ctx = context.WithoutCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.client.PostJSON(ctx, w.url, nil, payload); err != nil {
			w.log.Warn("webhook notice failed", map[string]any{
				"class": x.Class,
				"error": err.Error(),
			})
		}
	}()
}

// Wait espera los envíos en curso (shutdown).
func (w *Webhook) Wait() {
	w.wg.Wait()
}
