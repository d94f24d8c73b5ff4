package mailboxtree_test

import (
	"testing"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	fetched []mailboxtree.Node
}

func (f *fakeFetcher) Fetch(n mailboxtree.Node) { f.fetched = append(f.fetched, n) }

type fakeNotifier struct {
	changed []mailboxtree.Node
}

func (f *fakeNotifier) DataChanged(n mailboxtree.Node) { f.changed = append(f.changed, n) }

func TestNewRootMailboxMessageListIsDone(t *testing.T) {
	fetcher := &fakeFetcher{}
	root := mailboxtree.NewRootMailbox(fetcher, &fakeNotifier{})

	assert.Nil(t, root.Parent())
	assert.Equal(t, mailboxtree.StatusDone, root.MessageList().Status())
	assert.Equal(t, -1, root.UnreadMessageCount)
}

func TestMailboxChildrenCountTriggersFetchOnce(t *testing.T) {
	fetcher := &fakeFetcher{}
	root := mailboxtree.NewRootMailbox(fetcher, &fakeNotifier{})

	assert.Equal(t, mailboxtree.StatusNone, root.Status())
	assert.Equal(t, 1, root.ChildrenCount()) // only the synthetic MessageList so far
	assert.Equal(t, mailboxtree.StatusLoading, root.Status())
	assert.Len(t, fetcher.fetched, 1)

	root.ChildrenCount()
	assert.Len(t, fetcher.fetched, 1, "second call must not refetch while LOADING")
}

func TestNoSelectMailboxMessageListForcedDone(t *testing.T) {
	fetcher := &fakeFetcher{}
	root := mailboxtree.NewRootMailbox(fetcher, &fakeNotifier{})
	m := mailboxtree.NewMailbox(root, "Noselect", "/", []imap.MailboxAttr{imap.AttrNoSelect})

	assert.True(t, m.IsNoSelect())
	assert.Equal(t, mailboxtree.StatusDone, m.MessageList().Status())
}

func TestMailboxSetChildrenReplacesAndNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, notifier)
	a := mailboxtree.NewMailbox(root, "A", "/", nil)
	b := mailboxtree.NewMailbox(root, "B", "/", nil)

	evicted := root.SetChildren([]*mailboxtree.Mailbox{a})
	assert.Empty(t, evicted)
	assert.Equal(t, mailboxtree.StatusDone, root.Status())
	assert.Equal(t, 2, root.ChildrenCount()) // MessageList + A
	assert.Same(t, a, root.Child(1))
	require.Len(t, notifier.changed, 1)
	assert.Same(t, root, notifier.changed[0])

	evicted = root.SetChildren([]*mailboxtree.Mailbox{b})
	assert.Equal(t, []*mailboxtree.Mailbox{a}, evicted)
}

func TestHasChildMailboxesFastPath(t *testing.T) {
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, &fakeNotifier{})

	noInferiors := mailboxtree.NewMailbox(root, "Leaf", "/", []imap.MailboxAttr{imap.AttrNoInferiors})
	assert.False(t, noInferiors.HasChildMailboxes())

	hasChildren := mailboxtree.NewMailbox(root, "Parent", "/", []imap.MailboxAttr{imap.AttrHasChildren})
	assert.True(t, hasChildren.HasChildMailboxes())
}

func TestMessageListSyncPreservesSurvivingNodes(t *testing.T) {
	notifier := &fakeNotifier{}
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, notifier)
	list := root.MessageList()

	evicted := list.Sync([]uint32{1, 2, 3})
	assert.Empty(t, evicted)
	require.Equal(t, 3, list.ChildrenCount())
	msg2 := list.MessageByUID(2)
	require.NotNil(t, msg2)

	evicted = list.Sync([]uint32{1, 2})
	assert.Len(t, evicted, 1)
	assert.Equal(t, uint32(3), evicted[0].UID)
	assert.Same(t, msg2, list.MessageByUID(2), "surviving UID keeps its node")
}

func TestMessageListApplyExpungeRenumbers(t *testing.T) {
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, &fakeNotifier{})
	list := root.MessageList()
	list.Sync([]uint32{10, 20, 30})

	removed := list.ApplyExpunge(2)
	require.NotNil(t, removed)
	assert.Equal(t, uint32(20), removed.UID)
	assert.Equal(t, 2, list.ChildrenCount())

	msg30 := list.MessageByUID(30)
	require.NotNil(t, msg30)
	assert.Equal(t, uint32(2), msg30.SeqNum(), "message after the gap renumbers down by one")
}

func TestMessageListApplyExistsAppendsPlaceholders(t *testing.T) {
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, &fakeNotifier{})
	list := root.MessageList()
	list.ApplyExists(3)

	require.Equal(t, 3, list.ChildrenCount())
	assert.Equal(t, uint32(0), list.Child(0).(*mailboxtree.Message).UID, "placeholder has no UID yet")
}

func TestMessageSetMetadataBuildsPartTreeForMultipart(t *testing.T) {
	notifier := &fakeNotifier{}
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, notifier)
	list := root.MessageList()
	list.Sync([]uint32{1})
	msg := list.MessageByUID(1)

	bs := &imap.BodyStructureMultiPart{
		Subtype: "mixed",
		Parts: []imap.BodyStructure{
			&imap.BodyStructureSinglePart{Type: "text", Subtype: "plain"},
			&imap.BodyStructureSinglePart{Type: "image", Subtype: "png"},
		},
	}
	msg.SetMetadata(&imap.Envelope{Subject: "hi"}, 42, bs)

	assert.Equal(t, mailboxtree.StatusDone, msg.Status())
	require.Equal(t, 2, msg.ChildrenCount())
	p0 := msg.Child(0).(*mailboxtree.Part)
	p1 := msg.Child(1).(*mailboxtree.Part)
	assert.Equal(t, "1", p0.ID)
	assert.Equal(t, "2", p1.ID)
	assert.Equal(t, "text/plain", p0.MediaType())
}

func TestMessageSetMetadataSinglePartGetsPartOne(t *testing.T) {
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, &fakeNotifier{})
	list := root.MessageList()
	list.Sync([]uint32{1})
	msg := list.MessageByUID(1)

	bs := &imap.BodyStructureSinglePart{Type: "text", Subtype: "plain"}
	msg.SetMetadata(&imap.Envelope{}, 10, bs)

	require.Equal(t, 1, msg.ChildrenCount())
	assert.Equal(t, "1", msg.Child(0).(*mailboxtree.Part).ID)
}

func TestPartFetchAndSetBytes(t *testing.T) {
	fetcher := &fakeFetcher{}
	notifier := &fakeNotifier{}
	root := mailboxtree.NewRootMailbox(fetcher, notifier)
	list := root.MessageList()
	list.Sync([]uint32{1})
	msg := list.MessageByUID(1)
	msg.SetMetadata(&imap.Envelope{}, 10, &imap.BodyStructureSinglePart{Type: "text", Subtype: "plain"})

	part := msg.Child(0).(*mailboxtree.Part)
	part.Fetch()
	assert.Equal(t, mailboxtree.StatusLoading, part.Status())
	require.Len(t, fetcher.fetched, 1)
	assert.Same(t, part, fetcher.fetched[0])

	part.SetBytes([]byte("hello"))
	assert.Equal(t, mailboxtree.StatusDone, part.Status())
	assert.Equal(t, []byte("hello"), part.Bytes)
}

func TestInvalidateResetsStatusNotChildren(t *testing.T) {
	root := mailboxtree.NewRootMailbox(&fakeFetcher{}, &fakeNotifier{})
	root.SetChildren(nil)
	assert.Equal(t, mailboxtree.StatusDone, root.Status())

	mailboxtree.Invalidate(root)
	assert.Equal(t, mailboxtree.StatusNone, root.Status())
}
