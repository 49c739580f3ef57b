package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"TextToVideo-server/config"
)

// TextAPI 文案拆分和提示词改写（外部大模型协作方）
type TextAPI interface {
	SplitText(ctx context.Context, text string) ([]string, error)
	OptimizePrompt(ctx context.Context, text string) (string, error)
}

// VideoJobAPI 异步视频生成任务：提交拿 task_id，之后按 id 轮询
type VideoJobAPI interface {
	SubmitVideoTask(ctx context.Context, prompt, imageURL string) (string, error)
	QueryVideoTask(ctx context.Context, taskID string) (*VideoTaskStatus, error)
}

// VideoTaskStatus 轮询返回的任务快照
type VideoTaskStatus struct {
	Status   string // pending / generating / completed / failed
	VideoURL string
	Message  string
}

const splitSystemPrompt = `你是一个视频脚本专家。请将用户输入的口播文案拆分为多个适合15秒口播的片段。

要求：
1. 每个片段应该是完整的句子或段落，内容连贯
2. 每个片段大概300字，适合15秒的口播
3. 保持原文的逻辑顺序和语义完整性
4. 不要添加或删除原文内容，只做切分
5. 以JSON数组格式返回，每个元素是一个片段文本

只返回JSON数组，不要有其他内容。示例格式：
["第一段文案内容", "第二段文案内容", "第三段文案内容"]`

const optimizeSystemPrompt = `你是视频生成专家。请将口播文案转换为适合AI视频生成模型的提示词。

要求：
1. 提示词应该描述视觉场景、人物动作、环境氛围，而非口播内容本身
2. 使用具体的视觉描述词汇
3. 保持简洁，控制在80字以内
4. 可以包含镜头语言描述（如：特写、全景、平移等）

只返回提示词文本，不要有其他解释。`

// BailianClient 百炼 API 客户端（qwen 文本 + wanx 图生视频）
type BailianClient struct {
	apiKey       string
	baseURL      string
	textModel    string
	videoModel   string
	duration     int
	resolution   string
	promptExtend bool
	httpClient   *http.Client
	log          *slog.Logger
}

func NewBailianClient(cfg *config.Config) *BailianClient {
	return &BailianClient{
		apiKey:       cfg.Bailian.APIKey,
		baseURL:      strings.TrimSuffix(cfg.Bailian.BaseURL, "/"),
		textModel:    cfg.Bailian.TextModel,
		videoModel:   cfg.Bailian.VideoModel,
		duration:     cfg.Video.Duration,
		resolution:   cfg.Video.Resolution,
		promptExtend: cfg.Video.PromptExtend,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		log:          slog.With("module", "bailian"),
	}
}

// SplitText 调用文本模型把口播文案拆成 15s 片段
func (b *BailianClient) SplitText(ctx context.Context, text string) ([]string, error) {
	content, err := b.chat(ctx, splitSystemPrompt, text, 0.7, 2000)
	if err != nil {
		return nil, err
	}

	var segments []string
	if err := json.Unmarshal([]byte(content), &segments); err == nil {
		return segments, nil
	}

	// 模型夹带了说明文字，尝试抠出其中的 JSON 数组
	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &segments); err == nil {
			return segments, nil
		}
	}

	// 彻底解析不了就按空行切分原文兜底
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments, nil
}

// OptimizePrompt 把口播文案改写成视频生成提示词
func (b *BailianClient) OptimizePrompt(ctx context.Context, text string) (string, error) {
	user := "请将以下口播文案转换为视频生成提示词：\n" + text
	content, err := b.chat(ctx, optimizeSystemPrompt, user, 0.8, 200)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// TalkingHeadPrompt 固定模板的口播数字人提示词（不走模型）
func TalkingHeadPrompt(text string) string {
	const prefix = "Create a realistic, high-quality talking-head video of a friendly and knowledgeable health-conscious speaker (gender-neutral or female-presenting, natural appearance, soft lighting, neutral background). The speaker delivers the following script in a clear, conversational tone with appropriate facial expressions and lip-sync accuracy:"
	const suffix = "Ensure natural mouth movements, subtle head gestures, and authentic eye contact. The video should be 1080p, well-lit, with clean audio synchronization, and a calm, trustworthy atmosphere—ideal for wellness or natural health content."
	return prefix + text + suffix
}

func (b *BailianClient) chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	payload := map[string]interface{}{
		"model": b.textModel,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := b.post(ctx, "/compatible-mode/v1/chat/completions", payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("模型响应中没有choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// SubmitVideoTask 提交 i2v 图生视频异步任务，返回 task_id
func (b *BailianClient) SubmitVideoTask(ctx context.Context, prompt, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("i2v模式需要提供首帧图片")
	}

	payload := map[string]interface{}{
		"model": b.videoModel,
		"input": map[string]string{
			"prompt":  prompt,
			"img_url": imageURL,
		},
		"parameters": map[string]interface{}{
			"duration":      b.duration,
			"size":          b.resolution,
			"prompt_extend": b.promptExtend,
		},
	}

	b.log.Info("提交视频生成任务", "model", b.videoModel, "duration", b.duration, "size", b.resolution)

	var result struct {
		Output struct {
			TaskID string `json:"task_id"`
		} `json:"output"`
		Message string `json:"message"`
	}
	if err := b.postAsync(ctx, "/api/v1/services/aigc/video-generation/video-synthesis", payload, &result); err != nil {
		return "", err
	}
	if result.Output.TaskID == "" {
		return "", fmt.Errorf("提交任务失败: %s", result.Message)
	}
	return result.Output.TaskID, nil
}

// QueryVideoTask 查询任务状态并映射为内部状态机取值
func (b *BailianClient) QueryVideoTask(ctx context.Context, taskID string) (*VideoTaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Output struct {
			TaskStatus string `json:"task_status"`
			VideoURL   string `json:"video_url"`
			Message    string `json:"message"`
		} `json:"output"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析任务响应失败: %w", err)
	}
	if result.Output.TaskStatus == "" {
		return &VideoTaskStatus{Status: "failed", Message: result.Message}, nil
	}

	statusMap := map[string]string{
		"PENDING":   "pending",
		"RUNNING":   "generating",
		"SUCCEEDED": "completed",
		"FAILED":    "failed",
	}
	status, ok := statusMap[result.Output.TaskStatus]
	if !ok {
		status = "pending"
	}
	return &VideoTaskStatus{
		Status:   status,
		VideoURL: result.Output.VideoURL,
		Message:  result.Output.Message,
	}, nil
}

func (b *BailianClient) post(ctx context.Context, path string, payload, out interface{}) error {
	return b.doPost(ctx, path, payload, out, false)
}

func (b *BailianClient) postAsync(ctx context.Context, path string, payload, out interface{}) error {
	return b.doPost(ctx, path, payload, out, true)
}

func (b *BailianClient) doPost(ctx context.Context, path string, payload, out interface{}, async bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if async {
		req.Header.Set("X-DashScope-Async", "enable")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败 (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}
