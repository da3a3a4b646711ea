package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLevelFromEnv(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, levelFromEnv("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, levelFromEnv("warn"))
	assert.Equal(t, logrus.ErrorLevel, levelFromEnv("ERROR"))
	assert.Equal(t, logrus.InfoLevel, levelFromEnv(""))
	assert.Equal(t, logrus.InfoLevel, levelFromEnv("chatty"))
	assert.NotNil(t, GetLogger())
}
