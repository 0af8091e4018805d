package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWriteRuntimeChannels(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/res/provider/app.json", []byte(`{"startup_app":{"name":"res"},"runtime":{"version":"1"}}`), 0o644))

	written, err := WriteRuntimeChannels(fs, "/p/dist/provider", "/p/res/provider")
	require.NoError(t, err)
	require.Len(t, written, 4)

	for i, channel := range RuntimeChannels {
		assert.Equal(t, "/p/dist/provider/app.runtime-"+channel+".json", written[i])
		data, err := afero.ReadFile(fs, written[i])
		require.NoError(t, err)
		assert.Equal(t, channel, gjson.GetBytes(data, "runtime.version").String())
		assert.Equal(t, "res", gjson.GetBytes(data, "startup_app.name").String())
	}
}

func TestWriteRuntimeChannelsPrefersDist(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/res/provider/app.json", []byte(`{"startup_app":{"name":"res"},"runtime":{}}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/p/dist/provider/app.json", []byte(`{"startup_app":{"name":"dist"},"runtime":{}}`), 0o644))

	written, err := WriteRuntimeChannels(fs, "/p/dist/provider", "/p/res/provider")
	require.NoError(t, err)
	data, err := afero.ReadFile(fs, written[0])
	require.NoError(t, err)
	assert.Equal(t, "dist", gjson.GetBytes(data, "startup_app.name").String())
}

func TestWriteRuntimeChannelsMissing(t *testing.T) {
	_, err := WriteRuntimeChannels(afero.NewMemMapFs(), "/p/dist/provider", "/p/res/provider")
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provider/app.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"startup_app":{"uuid":"layouts-service","name":"layouts-service"},"runtime":{"version":"stable"}}`))
	}))
	defer srv.Close()

	f, err := Fetch(context.Background(), nil, srv.URL+"/provider/app.json")
	require.NoError(t, err)
	assert.Equal(t, "layouts-service", f.StartupApp.UUID)

	_, err = Fetch(context.Background(), nil, srv.URL+"/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
