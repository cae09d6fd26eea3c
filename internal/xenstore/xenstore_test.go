package xenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeWriteReadDirectory(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.Write(ctx, "/local/domain/3/memory/target", "1048576"))
	require.NoError(t, f.Write(ctx, "/local/domain/3/name", "guest-a"))

	names, err := f.Directory(ctx, "/local/domain/3")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"memory", "name"}, names)

	v, err := f.Read(ctx, "/local/domain/3/name")
	require.NoError(t, err)
	require.Equal(t, "guest-a", v)
}

func TestFakeReadMissingPath(t *testing.T) {
	f := NewFake()
	_, err := f.Read(context.Background(), "/nope")
	require.ErrorIs(t, err, ErrNoSuchPath)
}

func TestFakeRmPrefix(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	require.NoError(t, f.Write(ctx, "/local/domain/3/name", "guest-a"))
	require.NoError(t, f.Rm(ctx, "/local/domain/3"))
	_, err := f.Read(ctx, "/local/domain/3/name")
	require.ErrorIs(t, err, ErrNoSuchPath)
}

func TestFakeWatchAndStream(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.Watch(ctx, "/local/domain/3/name", "tok-1"))
	events, err := f.Stream(ctx)
	require.NoError(t, err)

	require.NoError(t, f.Write(ctx, "/local/domain/3/name", "guest-b"))

	select {
	case ev := <-events:
		require.Equal(t, "/local/domain/3/name", ev.Path)
		require.Equal(t, "tok-1", ev.Token)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}
