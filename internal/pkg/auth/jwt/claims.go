package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims for SkyMessage identity tokens.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss, which drive validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable user identifier assigned at registration.
	ID string `json:"id"`

	// Username is the account's login name, carried for display and logging.
	Username string `json:"username"`
}
