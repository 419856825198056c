package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStoreContainers(t *testing.T) {
	s := NewStore(zaptest.NewLogger(t), "User", "Post", "User")
	assert.Equal(t, []string{"Post", "User"}, s.Names())

	_, err := s.Container("User")
	require.NoError(t, err)

	_, err = s.Container("Missing")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStoreSnapshotRestore(t *testing.T) {
	s := NewStore(zaptest.NewLogger(t), "User", "Post")
	snaps := s.Snapshot()

	users, err := s.Container("User")
	require.NoError(t, err)
	_, err = users.Swap(func(snap Snapshot) (Snapshot, error) {
		return snap.Set(testEntity("1", nil)), nil
	})
	require.NoError(t, err)

	s.Restore(snaps)
	assert.Equal(t, 0, users.Read().Len())
}

func TestStoreCheck(t *testing.T) {
	s := NewStore(zaptest.NewLogger(t), "User")
	veto := errors.New("no")
	var calls int
	s.Before(func(ctx context.Context, change Change) error {
		calls++
		if change.Kind == ChangeDelete {
			return veto
		}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, s.Check(ctx, Change{Collection: "User", Kind: ChangeCreate}))

	err := s.Check(ctx, Change{Collection: "User", Kind: ChangeDelete})
	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.ErrorIs(t, err, veto)
	assert.Equal(t, "delete", hookErr.Operation)
	assert.Equal(t, 2, calls)
}

func TestStoreNotifyIsolatesObservers(t *testing.T) {
	s := NewStore(zaptest.NewLogger(t), "User")
	var got []ChangeKind
	s.Observe(ObserverFunc(func(ctx context.Context, change Change) error {
		panic("boom")
	}))
	s.Observe(ObserverFunc(func(ctx context.Context, change Change) error {
		return errors.New("failed")
	}))
	s.Observe(ObserverFunc(func(ctx context.Context, change Change) error {
		got = append(got, change.Kind)
		return nil
	}))

	s.Notify(context.Background(),
		Change{Collection: "User", Kind: ChangeCreate},
		Change{Collection: "User", Kind: ChangeUpdate})
	assert.Equal(t, []ChangeKind{ChangeCreate, ChangeUpdate}, got)
}
