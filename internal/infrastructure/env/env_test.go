package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvService_TypedGetters(t *testing.T) {
	t.Setenv("MAX_ROUNDS", "4")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("WORKER_TIMEOUT", "90s")
	t.Setenv("BROKEN_INT", "four")

	e := &EnvService{}

	assert.Equal(t, 4, e.GetInt("MAX_ROUNDS", 10))
	assert.Equal(t, 10, e.GetInt("BROKEN_INT", 10))
	assert.Equal(t, 7, e.GetInt("UNSET_INT_KEY", 7))

	assert.False(t, e.GetBool("BROWSER_HEADLESS", true))
	assert.True(t, e.GetBool("UNSET_BOOL_KEY", true))

	assert.Equal(t, 90*time.Second, e.GetDuration("WORKER_TIMEOUT", time.Minute))
	assert.Equal(t, time.Minute, e.GetDuration("BROKEN_INT", time.Minute))

	assert.Equal(t, "fallback", e.GetWithDefault("UNSET_STR_KEY", "fallback"))
}
