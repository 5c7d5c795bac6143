// Package logger configures the process-wide logrus logger.
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
	// currentLogFile 当前日志文件路径
	currentLogFile string
	fileWriter     *lumberjack.Logger
	logMu          sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	OutputFile string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int    // 日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留旧日志文件的天数
	Compress   bool   // 是否压缩旧日志文件
	NoColor    bool   // 关闭终端颜色（写文件或测试时）
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05.000",
		ForceColors:     !config.NoColor,
		DisableColors:   config.NoColor,
	}

	writers := []io.Writer{os.Stdout}
	closeFileLocked()
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return err
		}
		fileWriter = &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
		currentLogFile = config.OutputFile
	}
	out := io.MultiWriter(writers...)

	// 组件通过 logrus.WithField 取全局 logger
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)
	return nil
}

// InitDefault 使用默认配置初始化日志系统（仅控制台）
func InitDefault() error {
	return Init(Config{Level: "info"})
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	logMu.Lock()
	defer logMu.Unlock()
	return closeFileLocked()
}

func closeFileLocked() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	currentLogFile = ""
	return err
}

// WithFields returns an entry carrying the current log file, for startup and shutdown lines.
func WithFields(fields logrus.Fields) *logrus.Entry {
	entry := logrus.WithFields(fields)
	if f := GetCurrentLogFile(); f != "" {
		entry = entry.WithField("log_file", f)
	}
	return entry
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
