package entity

// Roles de operador. Inutilizar exige RoleOperador o RoleAdmin.
const (
	RoleAdmin    = "admin"
	RoleOperador = "operador"
	RoleConsulta = "consulta" // solo lectura y consultas a SIFEN
)

// Operator usuario que opera documentos a través de la API.
type Operator struct {
	Username     string
	Role         string
	PasswordHash string // bcrypt
}

// ValidRole indica si r es un rol conocido.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleOperador, RoleConsulta:
		return true
	}
	return false
}
