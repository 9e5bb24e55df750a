package internal

// SessionContext carries the authenticated identity for the lifetime of
// a login. Components read it through the API client rather than ambient
// storage, so logout simply replaces the value.
type SessionContext struct {
	Username string
	Token    string
}

// LoggedIn reports whether the context holds a usable identity.
func (c SessionContext) LoggedIn() bool {
	return c.Username != "" && c.Token != ""
}
