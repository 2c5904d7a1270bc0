package domain

// UserIdentity is what the identity verifier yields for a valid credential.
type UserIdentity struct {
	ID    string
	Email string
	Roles []string
}
