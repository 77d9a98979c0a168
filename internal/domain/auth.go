package domain

// TokenVerifier checks a bearer token issued by the external identity
// provider and returns the opaque user ID it carries. The service never
// issues or refreshes tokens itself.
type TokenVerifier interface {
	Verify(token string) (string, error)
}
