package entity

// Roles válidos del token JWT.
const (
	RoleAdmin       = "admin"
	RoleSupervisor  = "supervisor"
	RoleAlmacenista = "almacenista"
	RoleTecnico     = "tecnico"
)
