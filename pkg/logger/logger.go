package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例；Init 之后与 logrus 标准 logger 为同一实例，
	// 组件里 logrus.WithField() 创建的 entry 同样写入文件
	Logger = logrus.StandardLogger()

	mu       sync.Mutex
	rotating *lumberjack.Logger
)

// Config 日志配置
type Config struct {
	Level      string // debug, info, warn, error；无法解析时使用 info
	OutputFile string // 为空则只输出到控制台
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
}

// Init 初始化日志系统；可重复调用，旧的日志文件会被关闭
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	var out io.Writer = os.Stdout
	var next *lumberjack.Logger
	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return err
		}
		next = &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stdout, next)
	}

	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
	})
	Logger.SetOutput(out)

	if rotating != nil {
		_ = rotating.Close()
	}
	rotating = next
	return nil
}

// Close 关闭日志文件（控制台输出不受影响）
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotating == nil {
		return nil
	}
	Logger.SetOutput(os.Stdout)
	err := rotating.Close()
	rotating = nil
	return err
}

// CurrentFile 返回当前日志文件路径，未写文件时为空
func CurrentFile() string {
	mu.Lock()
	defer mu.Unlock()
	if rotating == nil {
		return ""
	}
	return rotating.Filename
}

func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
func Info(args ...interface{})                  { Logger.Info(args...) }

// WithField 带字段的日志 entry
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}
