package models

import "time"

// User represents an application user (mapped from Keycloak claims)
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Sub       string    `bson:"sub" json:"sub"` // OIDC subject
	Tenant    string    `bson:"tenant" json:"tenant"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TenantFromClaims picks the workspace a token acts in: an explicit tenant
// claim, then the Keycloak organization, then the user's personal workspace.
func TenantFromClaims(claims map[string]interface{}) string {
	for _, k := range []string{"tenant", "org_id"} {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	sub, _ := claims["sub"].(string)
	return sub
}
