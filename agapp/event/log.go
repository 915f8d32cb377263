// Package event 공용 로거
package event

import (
	"github.com/sirupsen/logrus"
)

// Log 애플리케이션 공용 로거
var Log = logrus.StandardLogger()

// SetLevel 로그 레벨 설정, 알 수 없는 레벨이면 info 사용
func SetLevel(level string) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		Log.Warnf("event: unknown log level %q, using info", level)
		l = logrus.InfoLevel
	}
	Log.SetLevel(l)
}
