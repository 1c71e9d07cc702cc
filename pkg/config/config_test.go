package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexrelay/gatewaycore/pkg/config"
)

func TestDefaultHasPositiveThresholds(t *testing.T) {
	s := config.Default()
	assert.Equal(t, config.PolicyPreserve, s.UnknownFieldPolicy)
	assert.Equal(t, 1, s.PassiveFailureThreshold)
	assert.Equal(t, 1, s.ActiveSuccessThreshold)
	assert.Equal(t, 64, s.StreamForwardBufferSize)
}

func TestAllSuffixesLongestFirst(t *testing.T) {
	s := config.Default()
	s.ReasoningSuffixes = []config.SuffixEffort{{Suffix: "-think", Effort: "high"}}
	all := s.AllSuffixes()
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, len(all[i-1].Suffix), len(all[i].Suffix))
	}
}

func TestStoreGetUpdate(t *testing.T) {
	st := config.NewStore(config.Default())
	assert.Equal(t, 1, st.Get().PassiveFailureThreshold)

	updated := config.Default()
	updated.PassiveFailureThreshold = 3
	st.Update(updated)
	assert.Equal(t, 3, st.Get().PassiveFailureThreshold)
}
