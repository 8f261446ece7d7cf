package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusWaitingApproval, StatusSent, true},
		{StatusWaitingApproval, StatusReplied, true},
		{StatusWaitingApproval, StatusCanceled, true},
		{StatusWaitingApproval, StatusError, true},
		{StatusCanceled, StatusWaitingApproval, true},
		{StatusDraft, StatusSent, true},
		{StatusCanceled, StatusSent, false},
		{StatusReplied, StatusWaitingApproval, false},
		{StatusIgnored, StatusWaitingApproval, false},
		{StatusSent, StatusCanceled, false},
		{StatusWaitingApproval, StatusIgnored, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusIgnored))
	assert.True(t, IsTerminal(StatusReplied))
	assert.True(t, IsTerminal(StatusSent))
	assert.False(t, IsTerminal(StatusWaitingApproval))
	assert.False(t, IsTerminal(StatusCanceled))
}
