package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"TextToVideo-server/config"
	"TextToVideo-server/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bailianTestClient(t *testing.T, handler http.Handler) *service.BailianClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.Bailian.APIKey = "sk-test"
	cfg.Bailian.BaseURL = server.URL
	cfg.Bailian.TextModel = "qwen-max"
	cfg.Bailian.VideoModel = "wanx2.1-i2v-turbo"
	cfg.Video.Duration = 5
	cfg.Video.Resolution = "1280*720"
	cfg.Video.PromptExtend = true
	return service.NewBailianClient(cfg)
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	require.NoError(t, err)
}

func TestSplitTextJSONArray(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compatible-mode/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		chatReply(t, w, `["第一段", "第二段", "第三段"]`)
	}))

	segments, err := client.SplitText(context.Background(), "完整文案")
	require.NoError(t, err)
	assert.Equal(t, []string{"第一段", "第二段", "第三段"}, segments)
}

func TestSplitTextExtractsEmbeddedArray(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "好的，以下是拆分结果：\n[\"第一段\", \"第二段\"]\n希望对你有帮助。")
	}))

	segments, err := client.SplitText(context.Background(), "完整文案")
	require.NoError(t, err)
	assert.Equal(t, []string{"第一段", "第二段"}, segments)
}

func TestSplitTextParagraphFallback(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "抱歉，我无法完成这个请求。")
	}))

	segments, err := client.SplitText(context.Background(), "第一段原文\n\n第二段原文\n\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"第一段原文", "第二段原文"}, segments)
}

func TestOptimizePrompt_Bailian(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "qwen-max", payload.Model)
		require.Len(t, payload.Messages, 2)
		assert.Equal(t, "system", payload.Messages[0].Role)
		assert.Contains(t, payload.Messages[1].Content, "口播文案")

		chatReply(t, w, "  特写镜头，温暖灯光下的演讲者  ")
	}))

	prompt, err := client.OptimizePrompt(context.Background(), "大家好")
	require.NoError(t, err)
	assert.Equal(t, "特写镜头，温暖灯光下的演讲者", prompt)
}

func TestSubmitVideoTask(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/services/aigc/video-generation/video-synthesis", r.URL.Path)
		assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))

		var payload struct {
			Model string `json:"model"`
			Input struct {
				Prompt string `json:"prompt"`
				ImgURL string `json:"img_url"`
			} `json:"input"`
			Parameters struct {
				Duration     int    `json:"duration"`
				Size         string `json:"size"`
				PromptExtend bool   `json:"prompt_extend"`
			} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "wanx2.1-i2v-turbo", payload.Model)
		assert.Equal(t, "测试提示词", payload.Input.Prompt)
		assert.Equal(t, "https://oss.example/img.jpg", payload.Input.ImgURL)
		assert.Equal(t, 5, payload.Parameters.Duration)
		assert.Equal(t, "1280*720", payload.Parameters.Size)
		assert.True(t, payload.Parameters.PromptExtend)

		err := json.NewEncoder(w).Encode(map[string]interface{}{
			"output": map[string]string{"task_id": "task-abc"},
		})
		require.NoError(t, err)
	}))

	taskID, err := client.SubmitVideoTask(context.Background(), "测试提示词", "https://oss.example/img.jpg")
	require.NoError(t, err)
	assert.Equal(t, "task-abc", taskID)
}

func TestSubmitVideoTaskRejected(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		err := json.NewEncoder(w).Encode(map[string]string{"message": "InvalidApiKey"})
		require.NoError(t, err)
	}))

	_, err := client.SubmitVideoTask(context.Background(), "提示词", "https://oss.example/img.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidApiKey")
}

func TestSubmitVideoTaskWithoutImage(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("不应发起请求")
	}))

	_, err := client.SubmitVideoTask(context.Background(), "提示词", "")
	require.Error(t, err)
}

func TestQueryVideoTaskStatusMapping(t *testing.T) {
	cases := []struct {
		upstream string
		want     string
	}{
		{"PENDING", "pending"},
		{"RUNNING", "generating"},
		{"SUCCEEDED", "completed"},
		{"FAILED", "failed"},
		{"SOMETHING_NEW", "pending"},
	}
	for _, tc := range cases {
		t.Run(tc.upstream, func(t *testing.T) {
			client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/tasks/task-abc", r.URL.Path)
				err := json.NewEncoder(w).Encode(map[string]interface{}{
					"output": map[string]string{
						"task_status": tc.upstream,
						"video_url":   "https://result.example/v.mp4",
					},
				})
				require.NoError(t, err)
			}))

			status, err := client.QueryVideoTask(context.Background(), "task-abc")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status.Status)
			assert.Equal(t, "https://result.example/v.mp4", status.VideoURL)
		})
	}
}

func TestQueryVideoTaskUpstreamError(t *testing.T) {
	client := bailianTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		err := json.NewEncoder(w).Encode(map[string]string{"message": "task not exist"})
		require.NoError(t, err)
	}))

	status, err := client.QueryVideoTask(context.Background(), "task-abc")
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "task not exist", status.Message)
}

func TestTalkingHeadPrompt(t *testing.T) {
	prompt := service.TalkingHeadPrompt("今天讲讲养生")
	assert.Contains(t, prompt, "talking-head video")
	assert.Contains(t, prompt, "今天讲讲养生")
}
