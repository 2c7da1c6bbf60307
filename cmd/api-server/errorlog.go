package main

import (
	"log"
	"strings"

	"librigo/pkg/logging"
)

// serverErrorWriter 将 http.Server 内部错误转为结构化日志
// 客户端提前断开产生的噪音（EOF、connection reset）降为 debug
type serverErrorWriter struct {
	logger *logging.Logger
}

func (w *serverErrorWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if strings.HasSuffix(msg, "EOF") || strings.Contains(msg, "connection reset by peer") {
		w.logger.Debug(msg)
		return len(p), nil
	}
	w.logger.Warn(msg)
	return len(p), nil
}

// newServerErrorLog 用于 http.Server.ErrorLog
func newServerErrorLog(logger *logging.Logger) *log.Logger {
	return log.New(&serverErrorWriter{logger: logger}, "", 0)
}
