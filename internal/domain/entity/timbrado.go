package entity

import "time"

// Timbrado autorización de la SET para emitir documentos desde un
// establecimiento y punto de expedición durante un período de vigencia.
type Timbrado struct {
	ID            string
	IssuerID      string
	Number        string    // Número de timbrado (8 dígitos)
	Establishment string    // 3 dígitos
	Point         string    // 3 dígitos
	ValidFrom     time.Time // Inicio de vigencia
	ValidTo       time.Time // Fin de vigencia (inclusive)
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Covers indica si el timbrado ampara una fecha de emisión.
func (t *Timbrado) Covers(issueDate time.Time) bool {
	if t == nil || !t.IsActive {
		return false
	}
	day := issueDate.Truncate(24 * time.Hour)
	return !day.Before(t.ValidFrom.Truncate(24*time.Hour)) && !day.After(t.ValidTo.Truncate(24*time.Hour))
}
