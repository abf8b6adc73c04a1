package notify

import "context"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice es un aviso para el usuario (toast). Class agrupa avisos del mismo
// tipo (p.ej. "write_failure") para poder deduplicarlos.
type Notice struct {
	Title    string
	Message  string
	Severity Severity
	Class    string
}

// Notifier es fire-and-forget: los adapters loguean sus propios errores.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapta una función a Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }
