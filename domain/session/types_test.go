package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramplab/domain/core"
)

func makeChannel(kind Kind, times, values []float64) Channel {
	samples := make([]Sample, len(times))
	for i := range times {
		samples[i] = Sample{T: times[i], Value: values[i]}
	}
	return Channel{Kind: kind, Samples: samples}
}

func TestChannelValidateMonotonicity(t *testing.T) {
	good := makeChannel(KindPower, []float64{0, 1, 2.5, 3}, []float64{1, 2, 3, 4})
	assert.NoError(t, good.Validate())

	dup := makeChannel(KindPower, []float64{0, 1, 1, 2}, []float64{1, 2, 3, 4})
	assert.ErrorIs(t, dup.Validate(), core.ErrNonMonotonicTime)

	backwards := makeChannel(KindPower, []float64{0, 2, 1}, []float64{1, 2, 3})
	assert.ErrorIs(t, backwards.Validate(), core.ErrNonMonotonicTime)
}

func TestNewRejectsInvalidChannel(t *testing.T) {
	bad := makeChannel(KindPower, []float64{5, 5}, []float64{1, 2})

	_, err := New(core.SessionID("s1"), ProtocolRamp, []Channel{bad})
	assert.ErrorIs(t, err, core.ErrNonMonotonicTime)
}

func TestSessionCloneIsDeep(t *testing.T) {
	sess, err := New(core.SessionID("s1"), ProtocolStep, []Channel{
		makeChannel(KindPower, []float64{0, 1, 2}, []float64{100, 110, 120}),
	})
	require.NoError(t, err)

	clone := sess.Clone()
	clone.Channels[0].Samples[0].Value = 999

	assert.Equal(t, 100.0, sess.Channels[0].Samples[0].Value)
}

func TestSessionDurationIsWidestChannelSpan(t *testing.T) {
	sess, err := New(core.SessionID("s1"), ProtocolRamp, []Channel{
		makeChannel(KindPower, []float64{0, 100}, []float64{1, 2}),
		makeChannel(KindHeartRate, []float64{0, 250}, []float64{1, 2}),
	})
	require.NoError(t, err)
	assert.Equal(t, 250.0, sess.Duration())
}

func TestSessionChannelLookup(t *testing.T) {
	sess, err := New(core.SessionID("s1"), ProtocolRamp, []Channel{
		makeChannel(KindPower, []float64{0, 1}, []float64{100, 110}),
	})
	require.NoError(t, err)

	_, ok := sess.Channel(KindPower)
	assert.True(t, ok)
	assert.True(t, sess.Has(KindPower))

	_, ok = sess.Channel(KindSmO2)
	assert.False(t, ok)
	assert.False(t, sess.Has(KindSmO2))
}

func TestFingerprintTracksData(t *testing.T) {
	a, err := New(core.SessionID("s1"), ProtocolRamp, []Channel{
		makeChannel(KindPower, []float64{0, 1, 2}, []float64{100, 110, 120}),
	})
	require.NoError(t, err)

	// Same data, different ID and creation time: same fingerprint.
	b, err := New(core.SessionID("s2"), ProtocolRamp, []Channel{
		makeChannel(KindPower, []float64{0, 1, 2}, []float64{100, 110, 120}),
	})
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	// One changed value: different fingerprint.
	c := a.Clone()
	c.Channels[0].Samples[2].Value = 121
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("ramp")
	require.NoError(t, err)
	assert.Equal(t, ProtocolRamp, p)

	p, err = ParseProtocol("step")
	require.NoError(t, err)
	assert.Equal(t, ProtocolStep, p)

	_, err = ParseProtocol("interval")
	assert.ErrorIs(t, err, core.ErrUnknownProtocol)
}

func TestKindUnits(t *testing.T) {
	assert.Equal(t, "W", KindPower.Unit())
	assert.Equal(t, "bpm", KindHeartRate.Unit())
	assert.Equal(t, "L/min", KindVentilation.Unit())
	assert.Equal(t, "%", KindSmO2.Unit())
	assert.Equal(t, "", Kind("bogus").Unit())
}
