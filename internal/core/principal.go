package core

// Capability is a coarse-grained permission checked at the HTTP handler
// boundary, replacing the reference implementation's "admin-only" route
// decorators with an explicit capability set per §9.
type Capability string

const (
	CapReadDocs    Capability = "read_docs"
	CapWriteDocs   Capability = "write_docs"
	CapAdminProject Capability = "admin_project"
)

// Principal is the authenticated caller of the HTTP API. The concrete
// authentication backend (email+OTP+JWT, or username+password+role) is an
// external collaborator per §1/§9; Principal is the only shape the core
// depends on.
type Principal struct {
	ID           string
	Capabilities map[Capability]bool
}

// Can reports whether p holds capability cap.
func (p Principal) Can(cap Capability) bool {
	return p.Capabilities != nil && p.Capabilities[cap]
}

// Authenticator resolves a bearer token into a Principal. It is the one
// pluggable seam for the external auth backend named in §1's Non-goals.
type Authenticator interface {
	Authenticate(token string) (Principal, error)
}
