package runtime

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsServer(t *testing.T) (*httptest.Server, int) {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Listener.Addr().(*net.TCPAddr).Port
}

func TestCommandPlaceholder(t *testing.T) {
	l := NewLauncher("openfin --launch --config {manifest}", nil)
	spec, err := l.Command("http://localhost:3011/demo/app.json")
	require.NoError(t, err)
	assert.Equal(t, "openfin", spec.Command)
	assert.Equal(t, []string{"--launch", "--config", "http://localhost:3011/demo/app.json"}, spec.Args)
}

func TestCommandAppendsManifestAndExpandsEnv(t *testing.T) {
	t.Setenv("RVM_DIR", "/opt/rvm")
	l := NewLauncher("${RVM_DIR}/rvm --config={manifest}x --quiet", nil)
	spec, err := l.Command("u")
	require.NoError(t, err)
	assert.Equal(t, "/opt/rvm/rvm", spec.Command)
	assert.Equal(t, []string{"--config=ux", "--quiet"}, spec.Args)

	spec, err = NewLauncher("my-launcher -v", nil).Command("http://m")
	require.NoError(t, err)
	assert.Equal(t, []string{"-v", "http://m"}, spec.Args)
}

func TestDefaultTemplate(t *testing.T) {
	l := NewLauncher("  ", nil)
	assert.Equal(t, DefaultTemplate(), l.Template)
	assert.True(t, strings.Contains(l.Template, manifestPlaceholder))
}

func TestProbe(t *testing.T) {
	_, port := wsServer(t)
	assert.True(t, Probe(context.Background(), port))
	assert.True(t, Listening(port))

	plain := httptest.NewServer(http.NotFoundHandler())
	defer plain.Close()
	plainPort := plain.Listener.Addr().(*net.TCPAddr).Port
	assert.False(t, Probe(context.Background(), plainPort))
	assert.True(t, Listening(plainPort))
}

func TestFindPort(t *testing.T) {
	_, port := wsServer(t)
	l := NewLauncher("", nil)
	l.FirstPort, l.LastPort = port, port
	l.PollInterval = 10 * time.Millisecond

	got, err := l.FindPort(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, port, got)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.FindPort(ctx, map[int]bool{port: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitClosed(t *testing.T) {
	srv, port := wsServer(t)
	l := NewLauncher("", nil)
	l.PollInterval = 10 * time.Millisecond
	inst := &Instance{Port: port, launcher: l}

	done := make(chan error, 1)
	go func() { done <- inst.WaitClosed(context.Background()) }()

	select {
	case <-done:
		t.Fatal("returned while the port was open")
	case <-time.After(50 * time.Millisecond):
	}
	srv.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitClosed did not notice the port closing")
	}
}
