package envmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reelflow/internal/hwreport"
	"reelflow/internal/registry"
)

func TestResolveASREnvironmentPrefersMLXOnAppleSilicon(t *testing.T) {
	assert.Equal(t, EnvMLX, ResolveASREnvironment(hwreport.Report{AppleSilicon: true}))
	assert.Equal(t, EnvWhisperX, ResolveASREnvironment(hwreport.Report{AppleSilicon: false}))
}

func TestResolveTranslationEnvironmentIndicPairs(t *testing.T) {
	assert.Equal(t, EnvIndicTrans2, ResolveTranslationEnvironment("hi", "gu"))
	assert.Equal(t, EnvIndicTrans2, ResolveTranslationEnvironment("hi", "en"))
	assert.Equal(t, EnvIndicTrans2, ResolveTranslationEnvironment("en", "ta"))
	assert.Equal(t, EnvNLLB, ResolveTranslationEnvironment("fr", "de"))
}

func TestResolveEnvironmentDelegatesToPolicyOnlyForPolicyStages(t *testing.T) {
	env, err := ResolveEnvironment(registry.Demux, hwreport.Report{}, "hi", "en")
	assert.NoError(t, err)
	assert.Equal(t, "common", env)

	env, err = ResolveEnvironment(registry.ASR, hwreport.Report{AppleSilicon: true}, "hi", "en")
	assert.NoError(t, err)
	assert.Equal(t, EnvMLX, env)
}
