package event

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer Log.SetLevel(logrus.InfoLevel)

	SetLevel("debug")
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	SetLevel("chatty")
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
