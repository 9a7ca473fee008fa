package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_IsValid(t *testing.T) {
	assert.True(t, OpUpsert.IsValid())
	assert.True(t, OpDelete.IsValid())
	assert.False(t, Operation("").IsValid())
	assert.False(t, Operation("replace").IsValid())
}

func TestNewChangeEvent(t *testing.T) {
	e := NewChangeEvent(EntityQuestion, "q-42", OpUpsert)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, EntityQuestion, e.EntityType)
	assert.Equal(t, "q-42", e.EntityID)
	assert.Equal(t, OpUpsert, e.Op)
	assert.NotZero(t, e.Timestamp)
	assert.Equal(t, "changes.question.q-42", e.Subject())
}

func TestDecode(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := NewChangeEvent(EntityQuestion, "q-7", OpDelete)
		data, err := e.Encode()
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Decode([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("rejects missing entity id", func(t *testing.T) {
		_, err := Decode([]byte(`{"operation":"upsert"}`))
		assert.Error(t, err)
	})

	t.Run("rejects unknown operation", func(t *testing.T) {
		_, err := Decode([]byte(`{"entityId":"q-1","operation":"sync"}`))
		assert.Error(t, err)
	})
}
