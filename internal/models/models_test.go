package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Text(t *testing.T) {
	testCases := []struct {
		status Status
		text   string
	}{
		{StatusAvailable, "Available"},
		{StatusIssued, "Issued"},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.text, tc.status.String())

			var decoded Status
			require.NoError(t, decoded.UnmarshalText([]byte(tc.text)))
			assert.Equal(t, tc.status, decoded)
		})
	}

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("Lost")))
	_, err := Status(7).MarshalText()
	assert.Error(t, err)
}

func TestBook_JSON(t *testing.T) {
	data, err := json.Marshal(Book{ID: 2, Title: "Python Basics", Author: "Bob", Status: StatusIssued})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"title":"Python Basics","author":"Bob","status":"Issued"}`, string(data))
}

func TestTransaction_Constructors(t *testing.T) {
	issued := NewIssued(2)
	assert.Equal(t, KindIssued, issued.Kind)
	assert.Equal(t, int64(2), issued.BookID)
	assert.NotEqual(t, issued.ID, NewIssued(2).ID, "each transaction gets its own id")
	assert.False(t, issued.RecordedAt.IsZero())
	assert.Equal(t, "issue book 2", issued.String())

	assert.Equal(t, "return book 2", NewReturned(2).String())

	deleted := NewDeleted(Book{ID: 3, Title: "Algorithms", Author: "Carol", Status: StatusIssued})
	assert.Equal(t, KindDeleted, deleted.Kind)
	assert.Equal(t, "Algorithms", deleted.Title)
	assert.Equal(t, "Carol", deleted.Author)
	assert.Equal(t, StatusIssued, deleted.Status)
	assert.Equal(t, "delete book 3 ('Algorithms' by Carol, Issued)", deleted.String())
}
