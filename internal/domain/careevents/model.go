package careevents

import "time"

// CareEvent es el registro de un cuidado realizado (toma de medicación,
// comida, paseo/pipí, observación). Inmutable una vez persistido: para
// "editar" se borra y se vuelve a crear.
type CareEvent struct {
	ID        string
	SubjectID string

	Category Category
	Label    string // nombre de la medicación, de la comida, etc.

	OccurredAt time.Time
	RecordedAt time.Time

	Notes     string
	CreatorID string
}
