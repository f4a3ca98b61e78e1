package improv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

func TestRegistryZeroValue(t *testing.T) {
	var r Registry
	for _, c := range protocol.Characteristics {
		assert.False(t, r.IsSubscribed(c), "%v subscribed in zero registry", c)
	}
	assert.Empty(t, r.Subscribed())
}

func TestRegistrySubscribeIdempotent(t *testing.T) {
	var r Registry
	r.Subscribe(protocol.CharError)
	r.Subscribe(protocol.CharError)

	assert.True(t, r.IsSubscribed(protocol.CharError))
	assert.Equal(t, []protocol.Characteristic{protocol.CharError}, r.Subscribed())

	r.Unsubscribe(protocol.CharError)
	r.Unsubscribe(protocol.CharError)
	assert.False(t, r.IsSubscribed(protocol.CharError))
}

func TestRegistryIgnoresUnrecognized(t *testing.T) {
	var r Registry
	r.Subscribe(protocol.Characteristic(17))
	r.Subscribe(protocol.Characteristic(-1))

	assert.False(t, r.IsSubscribed(protocol.Characteristic(17)))
	assert.Empty(t, r.Subscribed())
}

func TestRegistryReset(t *testing.T) {
	var r Registry
	for _, c := range protocol.Characteristics {
		r.Subscribe(c)
	}
	assert.Len(t, r.Subscribed(), protocol.NumCharacteristics)

	r.Reset()
	assert.Empty(t, r.Subscribed())
}

func TestNewSession(t *testing.T) {
	s := NewSession()
	assert.Equal(t, protocol.StateAuthorized, s.State)
	assert.Equal(t, protocol.ErrorNone, s.Error)
	assert.Empty(t, s.Registry.Subscribed())
}

func TestRegistryReadsOnSessionValue(t *testing.T) {
	session := func() Session {
		s := NewSession()
		s.Registry.Subscribe(protocol.CharState)
		return s
	}

	assert.True(t, session().Registry.IsSubscribed(protocol.CharState))
	assert.Equal(t, []protocol.Characteristic{protocol.CharState}, session().Registry.Subscribed())
}

func TestCredentialsStringHidesPassword(t *testing.T) {
	got := dopplerCreds.String()
	assert.Contains(t, got, "Doppler")
	assert.NotContains(t, got, "mofos2010")
	assert.Contains(t, got, "9 bytes")
}
