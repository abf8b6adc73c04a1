package notifiers

import (
	"context"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/notify"
)

// LogNotifier deja el aviso en el log. Es el sink por defecto.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log)}
}

func (n *LogNotifier) Notify(ctx context.Context, x notify.Notice) {
	fields := map[string]any{
		"title":    x.Title,
		"message":  x.Message,
		"severity": string(x.Severity),
		"class":    x.Class,
	}
	switch x.Severity {
	case notify.SeverityError:
		n.log.Error("notice", fields)
	case notify.SeverityWarning:
		n.log.Warn("notice", fields)
	default:
		n.log.Info("notice", fields)
	}
}

// Multi reparte el aviso a todos los sinks, en orden.
type Multi []notify.Notifier

func NewMulti(ns ...notify.Notifier) Multi {
	out := make(Multi, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m Multi) Notify(ctx context.Context, x notify.Notice) {
	for _, n := range m {
		n.Notify(ctx, x)
	}
}
