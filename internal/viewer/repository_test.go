package viewer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_Add(t *testing.T) {
	repo := NewInMemoryRepository()
	vs := &ViewerSession{ID: SessionID("s1")}

	t.Run("success", func(t *testing.T) {
		require.NoError(t, repo.Add(vs))
		got, err := repo.Get(vs.ID)
		require.NoError(t, err)
		assert.Same(t, vs, got)
	})

	t.Run("duplicate_rejected", func(t *testing.T) {
		assert.ErrorIs(t, repo.Add(&ViewerSession{ID: SessionID("s1")}), ErrSessionExists)
		got, _ := repo.Get(vs.ID)
		assert.Same(t, vs, got, "duplicate Add must not replace the first session")
	})
}

func TestInMemoryRepository_Get_not_found(t *testing.T) {
	repo := NewInMemoryRepository()
	_, err := repo.Get(SessionID("missing"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestInMemoryRepository_Remove(t *testing.T) {
	repo := NewInMemoryRepository()
	require.NoError(t, repo.Add(&ViewerSession{ID: SessionID("s1")}))

	got, err := repo.Remove(SessionID("s1"))
	require.NoError(t, err)
	assert.Equal(t, SessionID("s1"), got.ID)
	assert.Zero(t, repo.ActiveSessionCount())

	t.Run("second_remove_not_found", func(t *testing.T) {
		_, err := repo.Remove(SessionID("s1"))
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestInMemoryRepository_concurrent_access(t *testing.T) {
	repo := NewInMemoryRepository()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := SessionID(fmt.Sprintf("s%d", i))
			_ = repo.Add(&ViewerSession{ID: id})
			_, _ = repo.Get(id)
			_ = repo.All()
			if i%2 == 0 {
				_, _ = repo.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, repo.ActiveSessionCount())
	assert.Len(t, repo.All(), 25)
}
