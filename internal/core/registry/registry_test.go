package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	r := New()

	conv, err := r.Create("CA123", "contact-1", "501234567", "Ivan", "spring-campaign")
	require.NoError(t, err)
	assert.Equal(t, domain.StageGreeting, conv.Stage)
	assert.False(t, conv.StartedAt.IsZero())

	got, err := r.Get("CA123")
	require.NoError(t, err)
	assert.Same(t, conv, got)
}

func TestCreateDuplicate(t *testing.T) {
	r := New()

	_, err := r.Create("CA123", "", "501234567", "Ivan", "")
	require.NoError(t, err)

	_, err = r.Create("CA123", "", "501234567", "Ivan", "")
	assert.ErrorIs(t, err, ErrDuplicateCall)
}

func TestGetUnknown(t *testing.T) {
	r := New()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeTwice(t *testing.T) {
	r := New()

	_, err := r.Create("CA123", "", "501234567", "Ivan", "")
	require.NoError(t, err)

	conv, err := r.Finalize("CA123")
	require.NoError(t, err)
	assert.Equal(t, "CA123", conv.CallID)

	_, err = r.Finalize("CA123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendAfterFinalize(t *testing.T) {
	r := New()

	_, err := r.Create("CA123", "", "501234567", "Ivan", "")
	require.NoError(t, err)

	_, err = r.Finalize("CA123")
	require.NoError(t, err)

	err = r.AppendMessage("CA123", config.MessageRoleUser, "алло")
	assert.ErrorIs(t, err, ErrNotFound)

	// The conversation must not resurrect.
	_, err = r.Get("CA123")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Count())
}

func TestAppendMessageOrdering(t *testing.T) {
	r := New()

	_, err := r.Create("CA123", "", "501234567", "Ivan", "")
	require.NoError(t, err)

	require.NoError(t, r.AppendMessage("CA123", config.MessageRoleUser, "первый"))
	require.NoError(t, r.AppendMessage("CA123", config.MessageRoleAgent, "второй"))

	conv, err := r.Get("CA123")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "первый", conv.Messages[0].Text)
	assert.Equal(t, "второй", conv.Messages[1].Text)
}

func TestConcurrentAppends(t *testing.T) {
	r := New()

	_, err := r.Create("CA123", "", "501234567", "Ivan", "")
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = r.AppendMessage("CA123", config.MessageRoleUser, fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()

	conv, err := r.Get("CA123")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, n)
}

func TestCountAndActiveCallIDs(t *testing.T) {
	r := New()

	for i := 0; i < 5; i++ {
		_, err := r.Create(fmt.Sprintf("CA%d", i), "", "501234567", "Ivan", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, r.Count())
	assert.Len(t, r.ActiveCallIDs(), 5)

	_, err := r.Finalize("CA0")
	require.NoError(t, err)
	assert.Equal(t, 4, r.Count())
}
