package eventbus

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewEvent
// ---------------------------------------------------------------------------

func TestNewEvent_Success(t *testing.T) {
	configID := uuid.New()
	data := ConfigChangedData{ConfigID: configID, Code: "DEFAULT", Version: 2, IsActive: true, IsDefault: true}

	event, err := NewEvent(SubjectConfigActivated, "pricing", data)
	require.NoError(t, err)

	assert.Equal(t, SubjectConfigActivated, event.Type)
	assert.Equal(t, "pricing", event.Source)
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.Equal(t, time.UTC, event.Timestamp.Location())

	var decoded ConfigChangedData
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, configID, decoded.ConfigID)
	assert.Equal(t, 2, decoded.Version)
	assert.Nil(t, decoded.ActorID)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("x", "y", make(chan int))
	assert.Error(t, err)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a, err := NewEvent("x", "y", nil)
	require.NoError(t, err)
	b, err := NewEvent("x", "y", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

// ---------------------------------------------------------------------------
// Subjects / carrier
// ---------------------------------------------------------------------------

func TestSubjectsShareStreamPrefix(t *testing.T) {
	for _, s := range []string{
		SubjectConfigCreated,
		SubjectConfigUpdated,
		SubjectConfigActivated,
		SubjectConfigDeleted,
		SubjectPromoRedeemed,
	} {
		assert.True(t, strings.HasPrefix(s, SubjectPrefix), s)
	}
}

func TestHeaderCarrier(t *testing.T) {
	h := nats.Header{}
	carrier := HeaderCarrier(h)

	carrier.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())
	assert.Equal(t, "00-abc-def-01", h.Get("traceparent"))
}

func TestBus_Connected_NilConn(t *testing.T) {
	b := &Bus{}
	assert.False(t, b.Connected())
	b.Close()
}
