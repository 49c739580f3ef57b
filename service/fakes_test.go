package service_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"TextToVideo-server/service"

	"github.com/stretchr/testify/require"
)

// 内存版 RemoteStore，记录调用次数以便断言"未发生外部传输"
type fakeRemote struct {
	objects   map[string][]byte
	uploadErr error
	downloads int
	uploads   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: map[string][]byte{}}
}

func (f *fakeRemote) Available() bool { return true }

func (f *fakeRemote) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.objects[key] = cp
	return nil
}

func (f *fakeRemote) Download(_ context.Context, key string) ([]byte, error) {
	f.downloads++
	data, ok := f.objects[key]
	if !ok {
		return nil, service.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeRemote) Delete(_ context.Context, key string) error {
	if _, ok := f.objects[key]; !ok {
		return service.ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeRemote) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeRemote) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

type fakeText struct {
	chunks        []string
	splitErr      error
	optimizeCalls int
}

func (f *fakeText) SplitText(context.Context, string) ([]string, error) {
	if f.splitErr != nil {
		return nil, f.splitErr
	}
	return f.chunks, nil
}

func (f *fakeText) OptimizePrompt(_ context.Context, text string) (string, error) {
	f.optimizeCalls++
	return "画面：" + text, nil
}

type fakeJobs struct {
	taskID      string
	submitErr   error
	status      *service.VideoTaskStatus
	queryErr    error
	submitCalls int
	queryCalls  int
	lastImage   string
}

func (f *fakeJobs) SubmitVideoTask(_ context.Context, _, imageURL string) (string, error) {
	f.submitCalls++
	f.lastImage = imageURL
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.taskID, nil
}

func (f *fakeJobs) QueryVideoTask(context.Context, string) (*service.VideoTaskStatus, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.status, nil
}

// fakeVideo 下载返回预置字节，拼接即按顺序串联文件内容
type fakeVideo struct {
	files       map[string][]byte
	downloadErr error
	concatCalls int
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{files: map[string][]byte{}}
}

func (f *fakeVideo) Download(_ context.Context, url, savePath string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	data, ok := f.files[url]
	if !ok {
		return errors.New("unknown url: " + url)
	}
	return os.WriteFile(savePath, data, 0o644)
}

func (f *fakeVideo) Concat(_ context.Context, files []string, outputPath string) error {
	f.concatCalls++
	var out []byte
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		out = append(out, data...)
	}
	return os.WriteFile(outputPath, out, 0o644)
}

func (f *fakeVideo) Cleanup(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

type testEnv struct {
	local  *service.LocalStore
	remote *fakeRemote
	store  *service.WorkflowStore
	text   *fakeText
	jobs   *fakeJobs
	video  *fakeVideo
	engine *service.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	local, err := service.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		local:  local,
		remote: newFakeRemote(),
		text:   &fakeText{},
		jobs:   &fakeJobs{taskID: "task-1"},
		video:  newFakeVideo(),
	}
	env.store = service.NewWorkflowStore(local, env.remote)
	env.engine = service.NewEngine(env.store, local, env.remote, env.text, env.jobs, env.video)
	return env
}

// localOnlyEnv OSS 未配置的本地模式
func localOnlyEnv(t *testing.T) *testEnv {
	t.Helper()
	local, err := service.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		local: local,
		text:  &fakeText{},
		jobs:  &fakeJobs{taskID: "task-1"},
		video: newFakeVideo(),
	}
	env.store = service.NewWorkflowStore(local, service.NoRemote())
	env.engine = service.NewEngine(env.store, local, service.NoRemote(), env.text, env.jobs, env.video)
	return env
}
