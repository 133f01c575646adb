package domain

// SessionSnapshot is the locally cached view of the authenticated user.
// The zero value is the empty (signed-out) snapshot.
type SessionSnapshot struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	Drucoins   int    `json:"drucoins"`
	NeedsTerms bool   `json:"needsTerms"`
}

// SignedIn reports whether the snapshot belongs to a validated user.
func (s SessionSnapshot) SignedIn() bool {
	return s.UID != ""
}
