package source

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConnectionError(t *testing.T) {
	base := &ConnectionError{Account: "a@example.com", Op: "login", Err: errors.New("bad password")}

	assert.True(t, IsConnectionError(base))
	assert.True(t, IsConnectionError(fmt.Errorf("polling: %w", base)))
	assert.False(t, IsConnectionError(errors.New("other")))
	assert.Equal(t, "mailbox a@example.com (login): bad password", base.Error())
	assert.ErrorContains(t, errors.Unwrap(base), "bad password")
}
