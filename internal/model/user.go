package model

// User represents the authenticated principal's profile as returned by
// the Identity Gateway's /users/self endpoint. It is never synthesized from
// token claims.
//
// Fields:
//
//	ID             – user identifier (string on the wire).
//	Email          – login email.
//	Status         – account status of the user (e.g. active).
//	CreatedOn      – unix seconds of creation.
//	LastActivityOn – unix seconds of last activity.
//	ExpiresOn      – unix seconds of expiry, nil when the user never expires.
//	FirstName, LastName, Title – display name parts; Title may be nil.
//	Language, Timezone – locale preferences.
//	OfficePhone, MobilePhone – optional contact numbers.
type User struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Status         string   `json:"status"`
	CreatedOn      float64  `json:"created_on"`
	LastActivityOn float64  `json:"last_activity_on"`
	ExpiresOn      *float64 `json:"expires_on"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Title          *string  `json:"title"`
	Language       string   `json:"language"`
	Timezone       string   `json:"timezone"`
	OfficePhone    *string  `json:"office_phone"`
	MobilePhone    *string  `json:"mobile_phone"`
}

// AuthenticatedUser is the fetched profile merged with what the token says
// about the caller: scopes, the opaque user key, and the caller's own
// account (always the minimal record built from claims).
type AuthenticatedUser struct {
	User
	Account *Account `json:"account"`
	Scopes  []string `json:"scopes"`
	UserKey string   `json:"user_key"`
}

// NewAuthenticatedUser merges a fetched profile with claim-derived data.
func NewAuthenticatedUser(c *Claims, u *User, own *Account) *AuthenticatedUser {
	scopes := make([]string, len(c.Scopes))
	copy(scopes, c.Scopes)
	return &AuthenticatedUser{
		User:    *u,
		Account: own,
		Scopes:  scopes,
		UserKey: c.UserKey,
	}
}

// HasAnyScope reports whether the user holds at least one of scopes.
func (u *AuthenticatedUser) HasAnyScope(scopes ...string) bool {
	for _, want := range scopes {
		for _, have := range u.Scopes {
			if have == want {
				return true
			}
		}
	}
	return false
}
