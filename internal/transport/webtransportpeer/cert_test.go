package webtransportpeer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSigned_ProducesUsableIdentity(t *testing.T) {
	id, err := generateSelfSigned()
	require.NoError(t, err)

	assert.Len(t, id.Certificate.Certificate, 1)
	assert.Len(t, id.LeafSHA256, 64) // hex-encoded sha256

	tlsCfg := id.TLSConfig()
	assert.Equal(t, []string{"h3"}, tlsCfg.NextProtos)
	assert.Len(t, tlsCfg.Certificates, 1)
}

func TestGenerateSelfSigned_DistinctCallsProduceDistinctHashes(t *testing.T) {
	a, err := generateSelfSigned()
	require.NoError(t, err)
	b, err := generateSelfSigned()
	require.NoError(t, err)

	assert.NotEqual(t, a.LeafSHA256, b.LeafSHA256)
}

func TestGenerateSelfSigned_ValidityWindowCoversOneYear(t *testing.T) {
	id, err := generateSelfSigned()
	require.NoError(t, err)

	leaf := id.Certificate.Leaf
	if leaf == nil {
		t.Skip("leaf not parsed by tls.Certificate in this path")
	}
	assert.WithinDuration(t, time.Now().AddDate(1, 0, 0), leaf.NotAfter, time.Hour)
}
