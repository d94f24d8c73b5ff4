package memstore_test

import (
	"testing"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/cache"
	"github.com/trojita/goimap-engine/cache/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildMailboxesMissVsEmpty(t *testing.T) {
	s := memstore.New()

	_, ok := s.ChildMailboxes("INBOX")
	assert.False(t, ok, "never-fetched parent reports a miss")

	s.SetChildMailboxes("INBOX", nil)
	entries, ok := s.ChildMailboxes("INBOX")
	assert.True(t, ok, "explicitly empty result is a hit")
	assert.Empty(t, entries)
}

func TestForgetChildMailboxes(t *testing.T) {
	s := memstore.New()
	s.SetChildMailboxes("INBOX", []cache.MailboxEntry{{Name: "Drafts"}})

	s.ForgetChildMailboxes("INBOX")
	_, ok := s.ChildMailboxes("INBOX")
	assert.False(t, ok)
}

func TestMessageMetadataRoundTrip(t *testing.T) {
	s := memstore.New()
	meta := &cache.MessageMetadata{
		Envelope: &imap.Envelope{Subject: "hello"},
		Size:     123,
	}
	s.SetMessageMetadata(42, meta)

	got, ok := s.MessageMetadata(42)
	require.True(t, ok)
	assert.Equal(t, meta, got)

	_, ok = s.MessageMetadata(99)
	assert.False(t, ok)
}

func TestMessagePartKeyedByUIDAndPartID(t *testing.T) {
	s := memstore.New()
	s.SetMessagePart(1, "1", []byte("one"))
	s.SetMessagePart(1, "2", []byte("two"))
	s.SetMessagePart(2, "1", []byte("other message"))

	got, ok := s.MessagePart(1, "1")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), got)

	got, ok = s.MessagePart(1, "2")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), got)

	got, ok = s.MessagePart(2, "1")
	require.True(t, ok)
	assert.Equal(t, []byte("other message"), got)

	_, ok = s.MessagePart(3, "1")
	assert.False(t, ok)
}

func TestCloseIsNoop(t *testing.T) {
	s := memstore.New()
	assert.NoError(t, s.Close())
}
