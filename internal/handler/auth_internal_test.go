package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestDecoyHashIsWellFormed(t *testing.T) {
	cost, err := bcrypt.Cost(decoyHash)
	assert.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	err = bcrypt.CompareHashAndPassword(decoyHash, []byte("anything"))
	assert.ErrorIs(t, err, bcrypt.ErrMismatchedHashAndPassword)
}
