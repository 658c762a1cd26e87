package notify

import (
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/events"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func TestForwarderPublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	f := NewForwarder(pub, "", nil)
	f.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	e := events.NewEmitter()
	f.Attach(e)
	e.Emit("modify-/pages/index.js", "/pages/index.js")

	require.Len(t, pub.msgs, 1)
	require.Equal(t, DefaultSubject, pub.msgs[0].subject)

	var m Message
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &m))
	require.Equal(t, "modify-/pages/index.js", m.Event)
	require.Equal(t, "/pages/index.js", m.Path)
	require.True(t, m.Timestamp.Equal(f.now()))
}

func TestForwarderSwallowsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: stderrors.New("no responders")}
	f := NewForwarder(pub, "custom", nil)
	require.NotPanics(t, func() { f.Forward("modify-/a.js", "/a.js") })
	require.NoError(t, f.Close())
}

func TestNewNATSForwarderUnreachable(t *testing.T) {
	_, err := NewNATSForwarder("nats://127.0.0.1:1", "", nil)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}
