package model

// Identity is the resolved context of one request. It is built once, after
// every pipeline step succeeded, and handed to downstream handlers as a
// single value.
type Identity struct {
	Token   string             `json:"-"` // raw bearer credential
	User    *AuthenticatedUser `json:"user"`
	Account *Account           `json:"account"` // target account, self or impersonated
}

// IsImpersonating reports whether the target account differs from the
// caller's own account.
func (i *Identity) IsImpersonating() bool {
	if i == nil || i.User == nil || i.User.Account == nil || i.Account == nil {
		return false
	}
	return i.Account.ID != i.User.Account.ID
}
