package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	OSS struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"oss"`
	Bailian struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		TextModel  string `yaml:"text_model"`
		VideoModel string `yaml:"video_model"`
	} `yaml:"bailian"`
	Video struct {
		Duration     int    `yaml:"duration"`
		Resolution   string `yaml:"resolution"`
		PromptExtend bool   `yaml:"prompt_extend"`
		FFmpegBin    string `yaml:"ffmpeg_bin"`
	} `yaml:"video"`
	Local struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"local"`
}

var AppConfig *Config

// InitConfig 加载配置：先读 config/config.yaml（可缺省），再用环境变量覆盖密钥等部署相关项
func InitConfig() {
	AppConfig = defaultConfig()

	if f, err := os.Open("config/config.yaml"); err == nil {
		_ = yaml.NewDecoder(f).Decode(AppConfig)
		f.Close()
	}

	applyEnv(AppConfig)

	if AppConfig.Server.Port != "" && AppConfig.Server.Port[0] != ':' {
		AppConfig.Server.Port = ":" + AppConfig.Server.Port
	}
}

func defaultConfig() *Config {
	c := &Config{}
	c.Server.Port = ":8080"
	c.Log.Level = "info"
	c.OSS.Endpoint = "oss-cn-hangzhou.aliyuncs.com"
	c.OSS.UseSSL = true
	c.Bailian.BaseURL = "https://dashscope.aliyuncs.com"
	c.Bailian.TextModel = "qwen-max"
	c.Bailian.VideoModel = "wanx2.1-i2v-turbo"
	c.Video.Duration = 5
	c.Video.Resolution = "1280*720"
	c.Video.PromptExtend = true
	c.Video.FFmpegBin = "ffmpeg"
	c.Local.DataDir = "data"
	return c
}

func applyEnv(c *Config) {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	c.OSS.Endpoint = getEnv("OSS_ENDPOINT", c.OSS.Endpoint)
	c.OSS.AccessKey = getEnv("OSS_ACCESS_KEY_ID", c.OSS.AccessKey)
	c.OSS.SecretKey = getEnv("OSS_ACCESS_KEY_SECRET", c.OSS.SecretKey)
	c.OSS.Bucket = getEnv("OSS_BUCKET_NAME", c.OSS.Bucket)

	c.Bailian.APIKey = getEnv("DASHSCOPE_API_KEY", c.Bailian.APIKey)
	c.Bailian.TextModel = getEnv("TEXT_MODEL", c.Bailian.TextModel)
	c.Bailian.VideoModel = getEnv("VIDEO_MODEL", c.Bailian.VideoModel)

	if v := os.Getenv("VIDEO_DURATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Video.Duration = n
		}
	}
	c.Video.Resolution = getEnv("VIDEO_RESOLUTION", c.Video.Resolution)
	if v := os.Getenv("VIDEO_PROMPT_EXTEND"); v != "" {
		c.Video.PromptExtend = v == "true" || v == "True" || v == "1"
	}
	c.Video.FFmpegBin = getEnv("FFMPEG_BIN", c.Video.FFmpegBin)
	c.Local.DataDir = getEnv("DATA_DIR", c.Local.DataDir)
}

// OSSConfigured OSS 三要素齐全才认为已配置，否则服务退化为本地模式
func (c *Config) OSSConfigured() bool {
	return c.OSS.AccessKey != "" && c.OSS.SecretKey != "" && c.OSS.Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
