package domain

// Identity agrupa el triple {User, Profile, Plan} que devuelve una autorizacion exitosa.
// Nunca se devuelve parcialmente.
type Identity struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
	Plan    Plan    `json:"plan"`
}

// Provisioning describe las escrituras de un alta de identidad.
// User es nil cuando el usuario ya existe y solo falta el perfil.
type Provisioning struct {
	User    *User
	Profile Profile
	History PlanHistory
}
