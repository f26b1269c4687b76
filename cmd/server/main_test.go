package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kiranaledger/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", OperationTimeout: time.Second})
	assert.Error(t, err, "short AUTH_SECRET must be rejected")

	err = validateSecurityConfig(config.Config{
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		SeedAdminPassword: "abc",
		OperationTimeout:  time.Second,
	})
	assert.Error(t, err, "short seed password must be rejected")
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:       "0123456789abcdef0123456789abcdef",
		OperationTimeout: 10 * time.Second,
	})
	assert.NoError(t, err)
}
