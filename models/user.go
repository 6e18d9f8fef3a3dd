package models

// InfoUser is the caller identity decoded from the JWT by the user
// middleware. Tokens are issued by the accounts service, this API only
// verifies them.
type InfoUser struct {
	ID       int
	Email    string
	Roles    []int
	IsAdmin  bool
	IsClient bool
	IsAPI    bool
	Read     bool
}
