package subjects

import "time"

// Species define las especies soportadas.
// @Enum dog, cat, other
type Species string

const (
	SpeciesDog   Species = "dog"
	SpeciesCat   Species = "cat"
	SpeciesOther Species = "other"
)

func (s Species) Valid() bool {
	switch s {
	case SpeciesDog, SpeciesCat, SpeciesOther:
		return true
	}
	return false
}

// Subject es el animal al que se le registran cuidados.
// El tracker solo usa el ID como clave de cache.
type Subject struct {
	ID          string
	OwnerUserID string

	Name    string
	Species Species

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
