package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"TextToVideo-server/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoServiceDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/result.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	t.Cleanup(server.Close)

	v := service.NewVideoService("ffmpeg")
	savePath := filepath.Join(t.TempDir(), "out.mp4")

	require.NoError(t, v.Download(context.Background(), server.URL+"/result.mp4", savePath))
	data, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)

	err = v.Download(context.Background(), server.URL+"/missing.mp4", savePath)
	require.Error(t, err)
}

func TestVideoServiceCleanup(t *testing.T) {
	v := service.NewVideoService("ffmpeg")
	path := filepath.Join(t.TempDir(), "tmp.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	v.Cleanup(path, filepath.Join(t.TempDir(), "不存在.mp4"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
