package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("GF_TEST_STRING", "")
	assert.Equal(t, "fallback", GetEnvOrDefault("GF_TEST_STRING", "fallback"))

	t.Setenv("GF_TEST_STRING", "configured")
	assert.Equal(t, "configured", GetEnvOrDefault("GF_TEST_STRING", "fallback"))
}

func TestGetEnvFloatOrDefault(t *testing.T) {
	t.Setenv("GF_TEST_FLOAT", "")
	assert.Equal(t, 0.5, GetEnvFloatOrDefault("GF_TEST_FLOAT", 0.5))

	t.Setenv("GF_TEST_FLOAT", "0.33")
	assert.Equal(t, 0.33, GetEnvFloatOrDefault("GF_TEST_FLOAT", 0.5))

	t.Setenv("GF_TEST_FLOAT", "not-a-number")
	assert.Equal(t, 0.5, GetEnvFloatOrDefault("GF_TEST_FLOAT", 0.5))
}

func TestGetEnvBool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, "yes": true, "on": true,
		"0": false, "false": false, "": false, "maybe": false,
	}
	for raw, want := range cases {
		t.Setenv("GF_TEST_BOOL", raw)
		assert.Equal(t, want, GetEnvBool("GF_TEST_BOOL"), "input %q", raw)
	}
}

func TestRuntimeThreshold_FlagTakesPrecedence(t *testing.T) {
	t.Setenv("GATEFORGE_RUNTIME_THRESHOLD", "0.5")
	assert.Equal(t, 0.9, RuntimeThreshold(0.9, true))
}

func TestRuntimeThreshold_FallsBackToEnvThenDefault(t *testing.T) {
	t.Setenv("GATEFORGE_RUNTIME_THRESHOLD", "0.5")
	assert.Equal(t, 0.5, RuntimeThreshold(0, false))

	t.Setenv("GATEFORGE_RUNTIME_THRESHOLD", "")
	assert.Equal(t, DefaultRuntimeThreshold, RuntimeThreshold(0, false))
}

func TestStrictModelScript_FlagTakesPrecedence(t *testing.T) {
	t.Setenv("GATEFORGE_STRICT_MODEL_SCRIPT", "true")
	assert.False(t, StrictModelScript(false, true))
}

func TestStrictModelScript_FallsBackToEnv(t *testing.T) {
	t.Setenv("GATEFORGE_STRICT_MODEL_SCRIPT", "yes")
	assert.True(t, StrictModelScript(false, false))
}

func TestPolicyProfile(t *testing.T) {
	assert.Equal(t, "explicit", PolicyProfile("explicit"))

	t.Setenv("POLICY_PROFILE", "from-env")
	assert.Equal(t, "from-env", PolicyProfile(""))

	t.Setenv("POLICY_PROFILE", "")
	assert.Equal(t, "default", PolicyProfile(""))
}

func TestOpenModelicaImageAndScript(t *testing.T) {
	t.Setenv("GATEFORGE_OM_IMAGE", "om:latest")
	t.Setenv("GATEFORGE_OM_SCRIPT", "/opt/om/run.sh")

	assert.Equal(t, "om:latest", OpenModelicaImage())
	assert.Equal(t, "/opt/om/run.sh", OpenModelicaScript())
}
