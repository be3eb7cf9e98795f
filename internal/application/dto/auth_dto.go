package dto

// LoginRequest body para POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"usuario"`
	Password string `json:"password"`
}

// OperatorResponse operador autenticado.
type OperatorResponse struct {
	Username string `json:"usuario"`
	Role     string `json:"rol"`
}

// LoginResponse token + operador.
type LoginResponse struct {
	Token    string           `json:"token"`
	Operator OperatorResponse `json:"operador"`
}
