package partaddr_test

import (
	"testing"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/partaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(t *testing.T) *mailboxtree.Message {
	root := mailboxtree.NewRootMailbox(nil, nil)
	list := root.MessageList()
	list.Sync([]uint32{1})
	msg := list.MessageByUID(1)

	bs := &imap.BodyStructureMultiPart{
		Subtype: "mixed",
		Parts: []imap.BodyStructure{
			&imap.BodyStructureSinglePart{Type: "text", Subtype: "plain", ID: "part1"},
			&imap.BodyStructureMultiPart{
				Subtype: "alternative",
				Parts: []imap.BodyStructure{
					&imap.BodyStructureSinglePart{Type: "text", Subtype: "html"},
					&imap.BodyStructureSinglePart{Type: "image", Subtype: "png", ID: "logo"},
				},
			},
		},
	}
	msg.SetMetadata(&imap.Envelope{}, 100, bs)
	require.NotNil(t, msg)
	return msg
}

func TestResolvePartIDTopLevel(t *testing.T) {
	msg := testMessage(t)
	p, suffix, err := partaddr.ResolvePartID(msg, "1")
	require.NoError(t, err)
	assert.Equal(t, "", suffix)
	assert.Equal(t, "text/plain", p.MediaType())
}

func TestResolvePartIDNested(t *testing.T) {
	msg := testMessage(t)
	p, suffix, err := partaddr.ResolvePartID(msg, "2.2")
	require.NoError(t, err)
	assert.Equal(t, "", suffix)
	assert.Equal(t, "image/png", p.MediaType())
}

func TestResolvePartIDWithSectionSuffix(t *testing.T) {
	msg := testMessage(t)
	p, suffix, err := partaddr.ResolvePartID(msg, "1.HEADER")
	require.NoError(t, err)
	assert.Equal(t, "HEADER", suffix)
	assert.Equal(t, "1", partaddr.PartID(p))
}

func TestResolvePartIDUnknown(t *testing.T) {
	msg := testMessage(t)
	_, _, err := partaddr.ResolvePartID(msg, "9.9")
	require.Error(t, err)
	var pErr *partaddr.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, partaddr.UnknownPartID, pErr.Kind)
}

func TestResolvePath(t *testing.T) {
	msg := testMessage(t)
	p, err := partaddr.ResolvePath(msg, []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MediaType())
}

func TestResolvePathUnknownIndex(t *testing.T) {
	msg := testMessage(t)
	_, err := partaddr.ResolvePath(msg, []int{5})
	require.Error(t, err)
}

func TestResolveCIDWithAndWithoutBrackets(t *testing.T) {
	msg := testMessage(t)

	p, err := partaddr.ResolveCID(msg, "logo")
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MediaType())

	p2, err := partaddr.ResolveCID(msg, "<logo>")
	require.NoError(t, err)
	assert.Same(t, p, p2)
}

func TestResolveCIDUnknown(t *testing.T) {
	msg := testMessage(t)
	_, err := partaddr.ResolveCID(msg, "nonexistent")
	require.Error(t, err)
	var pErr *partaddr.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, partaddr.UnknownContentID, pErr.Kind)
}
