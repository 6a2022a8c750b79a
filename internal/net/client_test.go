package net

import (
	"context"
	"image"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/state"
)

type recorder struct {
	mu       sync.Mutex
	approve  bool
	role     state.Role
	name     string
	access   []bool
	members  []state.PeerInfo
	draws    []state.DrawEvent
	chat     []string
	cleared  int
	override []byte
	quit     bool
	snapshot []byte
}

func (r *recorder) SetRole(role state.Role, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.role, r.name = role, name
}

func (r *recorder) ApproveJoin(string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approve
}

func (r *recorder) SetAccess(granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.access = append(r.access, granted)
}

func (r *recorder) SyncMembers(m []state.PeerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = m
}

func (r *recorder) SyncDraw(e state.DrawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws = append(r.draws, e)
}

func (r *recorder) SyncChat(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, line)
}

func (r *recorder) SyncChatHistory(lines []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append([]string(nil), lines...)
}

func (r *recorder) OverrideCanvas(img []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = img
}

func (r *recorder) ClearCanvas() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

func (r *recorder) ForceQuit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quit = true
}

func (r *recorder) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, nil
}

func (r *recorder) read(fn func(r *recorder) bool) func() bool {
	return func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return fn(r)
	}
}

func startServer(t *testing.T) (*Coordinator, string) {
	t.Helper()
	c := NewCoordinator(DefaultCoordinatorConfig(), zerolog.Nop())
	srv := httptest.NewServer(c.Handler())
	t.Cleanup(func() {
		c.Shutdown()
		srv.Close()
	})
	return c, "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + ServiceName
}

func dial(t *testing.T, endpoint string, h Handler) *Client {
	t.Helper()
	cl, err := Dial(context.Background(), endpoint, h, DefaultClientConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(cl.Close)
	return cl
}

func TestEndToEndSession(t *testing.T) {
	_, endpoint := startServer(t)
	ctx := context.Background()

	ownerH := &recorder{approve: true, snapshot: []byte("board")}
	owner := dial(t, endpoint, ownerH)
	name, role, err := owner.Login(ctx, "A", true)
	require.NoError(t, err)
	assert.Equal(t, "(Host) A", name)
	assert.Equal(t, state.Owner, role)

	taken, err := owner.UsernameTaken(ctx, "A")
	require.NoError(t, err)
	assert.True(t, taken)

	rivalH := &recorder{}
	rival := dial(t, endpoint, rivalH)
	_, _, err = rival.Login(ctx, "A", false)
	require.ErrorIs(t, err, ErrNameConflict)

	editorH := &recorder{}
	editor := dial(t, endpoint, editorH)
	name, role, err = editor.Login(ctx, "C", false)
	require.NoError(t, err)
	assert.Equal(t, "C", name)
	assert.Equal(t, state.Editor, role)

	img, err := editor.RequestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("board"), img)

	members, err := editor.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []state.PeerInfo{
		{Name: "(Host) A", Role: state.Owner},
		{Name: "C", Role: state.Editor},
	}, members)

	require.NoError(t, owner.BroadcastDraw(state.DrawEvent{Stage: state.Start, Tool: state.Line, Color: state.Foreground, Point: image.Pt(10, 10)}))
	require.NoError(t, owner.BroadcastDraw(state.DrawEvent{Stage: state.End, Tool: state.Line, Color: state.Foreground, Point: image.Pt(50, 50)}))
	require.NoError(t, editor.BroadcastChat("hi"))

	require.Eventually(t, editorH.read(func(r *recorder) bool {
		return len(r.draws) == 2 && len(r.chat) == 1
	}), 2*time.Second, 10*time.Millisecond)
	editorH.mu.Lock()
	assert.Equal(t, "(Host) A", editorH.draws[0].Origin)
	assert.Equal(t, state.Start, editorH.draws[0].Stage)
	assert.Equal(t, state.End, editorH.draws[1].Stage)
	assert.Equal(t, []string{"C: hi"}, editorH.chat)
	editorH.mu.Unlock()

	require.Eventually(t, ownerH.read(func(r *recorder) bool {
		return len(r.chat) == 1 && r.chat[0] == "C: hi"
	}), 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, editor.ClearCanvas(ctx), ErrNotOwner)
	require.NoError(t, owner.ClearCanvas(ctx))
	require.Eventually(t, editorH.read(func(r *recorder) bool { return r.cleared == 1 }), 2*time.Second, 10*time.Millisecond)

	require.NoError(t, owner.EndSession(ctx))
	require.Eventually(t, editorH.read(func(r *recorder) bool { return r.quit }), 2*time.Second, 10*time.Millisecond)
}

func TestEndToEndDeniedJoin(t *testing.T) {
	_, endpoint := startServer(t)
	ctx := context.Background()

	owner := dial(t, endpoint, &recorder{approve: false})
	_, _, err := owner.Login(ctx, "A", true)
	require.NoError(t, err)

	h := &recorder{}
	editor := dial(t, endpoint, h)
	_, _, err = editor.Login(ctx, "C", false)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Eventually(t, h.read(func(r *recorder) bool {
		return len(r.access) == 1 && !r.access[0]
	}), 2*time.Second, 10*time.Millisecond)
}

func TestOwnerConnectionLossEndsSession(t *testing.T) {
	c, endpoint := startServer(t)
	ctx := context.Background()

	owner := dial(t, endpoint, &recorder{approve: true})
	_, _, err := owner.Login(ctx, "A", true)
	require.NoError(t, err)
	h := &recorder{}
	editor := dial(t, endpoint, h)
	_, _, err = editor.Login(ctx, "C", false)
	require.NoError(t, err)

	owner.Close()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session still running")
	}
	require.Eventually(t, h.read(func(r *recorder) bool { return r.quit }), 2*time.Second, 10*time.Millisecond)
}

func TestDialUnreachable(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/canvas", &recorder{}, cfg, zerolog.Nop())
	require.ErrorIs(t, err, ErrConnection)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "ws://10.0.0.2:3200/canvas", Endpoint("10.0.0.2", 3200, ""))
	assert.Equal(t, "ws://localhost:80/board", Endpoint("localhost", 80, "board"))
}
