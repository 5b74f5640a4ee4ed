package models

import "time"

// Credential is the provider authorization held for one external user.
//
// RefreshToken is only ever replaced by a newly issued one, never cleared.
type Credential struct {
	ExternalUserID string    `json:"external_user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	Email          string    `json:"email,omitempty"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (c *Credential) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !c.ExpiresAt.Add(-margin).After(now)
}

// User is an account linked to the primary provider.
type User struct {
	id         string
	sequence   int
	credential Credential
	createdAt  time.Time
	updatedAt  time.Time
	lastLogin  *time.Time
}

// NewUser creates a [User] for cred with creation timestamps set to now.
func NewUser(sequence int, cred Credential) *User {
	now := time.Now()
	return &User{
		sequence:   sequence,
		credential: cred,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (u *User) ID() string                { return u.id }
func (u *User) Sequence() int             { return u.sequence }
func (u *User) ExternalUserID() string    { return u.credential.ExternalUserID }
func (u *User) DisplayName() string       { return u.credential.DisplayName }
func (u *User) Email() string             { return u.credential.Email }
func (u *User) Credential() Credential    { return u.credential }
func (u *User) CreatedAt() time.Time      { return u.createdAt }
func (u *User) UpdatedAt() time.Time      { return u.updatedAt }
func (u *User) LastLogin() *time.Time     { return u.lastLogin }
func (u *User) SetID(id string)           { u.id = id }
func (u *User) SetCreatedAt(t time.Time)  { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)  { u.updatedAt = t }
func (u *User) SetLastLogin(t *time.Time) { u.lastLogin = t }
