package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStatus_Rank(t *testing.T) {
	assert.Less(t, RequestStatusPending.Rank(), RequestStatusApproved.Rank())
	assert.Less(t, RequestStatusApproved.Rank(), RequestStatusRejected.Rank())
	assert.False(t, RequestStatusPending.IsTerminal())
	assert.True(t, RequestStatusApproved.IsTerminal())
	assert.True(t, RequestStatusRejected.IsTerminal())
}

func TestBorrowingStatus_Rank(t *testing.T) {
	assert.Less(t, BorrowingStatusBorrowed.Rank(), BorrowingStatusReturned.Rank())
}

func TestUser_PasswordHashNotSerialized(t *testing.T) {
	u := User{UserID: 1, Username: "alice", PasswordHash: "$2a$12$secret", Role: UserRoleUser}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
}

func TestBookView_FlattensBook(t *testing.T) {
	who := "alice"
	v := BookView{
		Book:       Book{BookID: 7, Title: "Dune", Author: "Herbert", Status: BookStatusBorrowed, CreatedAt: time.Now()},
		BorrowedBy: &who,
	}
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, float64(7), m["book_id"])
	assert.Equal(t, "borrowed", m["status"])
	assert.Equal(t, "alice", m["borrowed_by"])
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("x"))
	assert.Equal(t, "x", *StringPtr("x"))
}

func TestLoanFlag_Valid(t *testing.T) {
	tests := []struct {
		flag LoanFlag
		want bool
	}{
		{LoanFlagYes, true},
		{LoanFlagNo, true},
		{"ya", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.flag), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flag.Valid())
		})
	}
}
