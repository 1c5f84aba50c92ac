package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantFromClaims(t *testing.T) {
	assert.Equal(t, "acme", TenantFromClaims(map[string]interface{}{"sub": "u1", "tenant": "acme", "org_id": "org"}))
	assert.Equal(t, "org", TenantFromClaims(map[string]interface{}{"sub": "u1", "org_id": "org"}))
	assert.Equal(t, "u1", TenantFromClaims(map[string]interface{}{"sub": "u1", "tenant": ""}))
	assert.Empty(t, TenantFromClaims(map[string]interface{}{}))
}
