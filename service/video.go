package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// VideoTool 视频下载与拼接（外部协作方：HTTP 下载 + ffmpeg）
type VideoTool interface {
	Download(ctx context.Context, url, savePath string) error
	Concat(ctx context.Context, files []string, outputPath string) error
	Cleanup(paths ...string)
}

// VideoService ffmpeg concat 流复制拼接，不做转码
type VideoService struct {
	ffmpegBin  string
	httpClient *http.Client
	log        *slog.Logger
}

func NewVideoService(ffmpegBin string) *VideoService {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &VideoService{
		ffmpegBin:  ffmpegBin,
		httpClient: &http.Client{Timeout: 300 * time.Second},
		log:        slog.With("module", "video"),
	}
}

// Download 下载远端视频到本地文件
func (v *VideoService) Download(ctx context.Context, url, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载视频失败: HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(savePath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

// Concat 按顺序拼接视频片段，-c copy 直接复制流
func (v *VideoService) Concat(ctx context.Context, files []string, outputPath string) error {
	if len(files) == 0 {
		return fmt.Errorf("没有可拼接的视频文件")
	}

	// concat demuxer 的文件清单
	listFile, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(listFile.Name())

	for _, file := range files {
		safePath := strings.ReplaceAll(file, "\\", "/")
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", safePath); err != nil {
			listFile.Close()
			return err
		}
	}
	if err := listFile.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 300*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.ffmpegBin,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c", "copy",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		v.log.Error("ffmpeg 执行失败", "err", err, "output", tail(string(output), 500))
		return fmt.Errorf("视频合成失败: %w", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("视频合成未产出文件")
	}
	return nil
}

// Cleanup 清理临时文件，成功失败路径都要调
func (v *VideoService) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			v.log.Warn("清理文件失败", "path", path, "err", err)
		}
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
