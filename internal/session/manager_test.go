package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostbridge/hostbridge/internal/engine"
	"github.com/hostbridge/hostbridge/internal/loader"
	"github.com/hostbridge/hostbridge/internal/protocol"
	"github.com/hostbridge/hostbridge/internal/transport"
)

func strPtr(s string) *string { return &s }

func testManager() *Manager {
	read := func(_ context.Context, uri string) (*protocol.ReadResourceResult, error) {
		return &protocol.ReadResourceResult{
			Contents: []protocol.ResourceContents{
				{URI: uri, MimeType: protocol.MIMEType, Text: strPtr("<html><head></head><body>app</body></html>")},
			},
		}, nil
	}
	return NewManager(Config{
		Loader:       loader.New(loader.Options{}),
		ReadResource: read,
	})
}

func TestOpenGetClose(t *testing.T) {
	m := testManager()

	sess, err := m.Open(context.Background(), "ui://app/demo", OpenOptions{ToolName: "demo"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "ui://app/demo", sess.URI)
	assert.Equal(t, engine.StateIdle, sess.Engine.State())
	assert.Contains(t, sess.Engine.HTML(), "Content-Security-Policy")

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	assert.True(t, m.Close(sess.ID))
	_, ok = m.Get(sess.ID)
	assert.False(t, ok)
	assert.False(t, m.Close(sess.ID))
}

func TestOpenPropagatesLoadErrors(t *testing.T) {
	m := testManager()

	_, err := m.Open(context.Background(), "https://not-a-fragment", OpenOptions{})

	var loadErr *loader.LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestAttachBindsSurface(t *testing.T) {
	m := testManager()
	sess, err := m.Open(context.Background(), "ui://app/demo", OpenOptions{})
	require.NoError(t, err)

	pipe := transport.NewPipe("pipe-1")
	require.NoError(t, m.Attach(sess.ID, pipe))
	assert.Equal(t, engine.StateLoading, sess.Engine.State())

	require.ErrorIs(t, m.Attach("missing", pipe), ErrNotFound)
}

func TestStatsGroupsByState(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	a, err := m.Open(ctx, "ui://app/a", OpenOptions{})
	require.NoError(t, err)
	_, err = m.Open(ctx, "ui://app/b", OpenOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Attach(a.ID, transport.NewPipe("pipe-1")))

	stats := m.Stats()
	assert.Equal(t, 1, stats[engine.StateLoading])
	assert.Equal(t, 1, stats[engine.StateIdle])
}

func TestCloseAllDisposesEverything(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	a, err := m.Open(ctx, "ui://app/a", OpenOptions{})
	require.NoError(t, err)
	b, err := m.Open(ctx, "ui://app/b", OpenOptions{})
	require.NoError(t, err)

	m.CloseAll()

	assert.Empty(t, m.List())
	require.ErrorIs(t, a.Engine.Attach(transport.NewPipe("p")), engine.ErrDisposed)
	require.ErrorIs(t, b.Engine.Attach(transport.NewPipe("p")), engine.ErrDisposed)
}
