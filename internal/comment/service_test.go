// internal/comment/service_test.go
package comment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

func newTestService(t *testing.T) (*Service, docstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := docstore.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store), store, mr
}

func TestAddAndReadBack(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, "r1", CreateInput{
		OptionID: "o1",
		UserID:   "u1",
		UserName: "Ada",
		Text:     "works for me",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var c models.Comment
	found, err := store.Get(ctx, commentPath("r1", "o1", id), &c)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "works for me", c.Text)
	assert.Equal(t, "Ada", c.UserName)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "o1", c.OptionID)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestAddRejectsEmptyText(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Add(context.Background(), "r1", CreateInput{OptionID: "o1", Text: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDelete(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, "r1", CreateInput{OptionID: "o1", UserID: "u1", UserName: "Ada", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "r1", "o1", id))

	var c models.Comment
	found, err := store.Get(ctx, commentPath("r1", "o1", id), &c)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWatchOrdersChronologically(t *testing.T) {
	svc, _, mr := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	mr.SetTime(base)
	_, err := svc.Add(ctx, "r1", CreateInput{OptionID: "o1", UserID: "u1", UserName: "Ada", Text: "first"})
	require.NoError(t, err)
	mr.SetTime(base.Add(time.Minute))
	_, err = svc.Add(ctx, "r1", CreateInput{OptionID: "o1", UserID: "u2", UserName: "Grace", Text: "second"})
	require.NoError(t, err)

	w := svc.Watch(ctx, "r1", "o1")
	defer w.Unsubscribe()

	thread := recvThread(t, w.C)
	require.Len(t, thread, 2)
	assert.Equal(t, "first", thread[0].Text)
	assert.Equal(t, "second", thread[1].Text)

	mr.SetTime(base.Add(2 * time.Minute))
	_, err = svc.Add(ctx, "r1", CreateInput{OptionID: "o1", UserID: "u1", UserName: "Ada", Text: "third"})
	require.NoError(t, err)

	thread = recvThread(t, w.C)
	require.Len(t, thread, 3)
	assert.Equal(t, "third", thread[2].Text)
}

func recvThread(t *testing.T, ch <-chan []models.Comment) []models.Comment {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for comment thread")
		return nil
	}
}
