package keypool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentEmptyPool(t *testing.T) {
	a := assert.New(t)

	p := New(nil)
	cur, ok := p.Current()
	a.False(ok)
	a.Empty(cur)
}

func TestCurrentPrefersValid(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa", "key-bbbbbbbbbb", "key-cccccccccc"})
	p.MarkValid("key-bbbbbbbbbb")

	cur, ok := p.Current()
	a.True(ok)
	a.Equal("key-bbbbbbbbbb", cur)
}

func TestCurrentRoundRobinOverUnknown(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa", "key-bbbbbbbbbb", "key-cccccccccc"})

	want := []string{"key-aaaaaaaaaa", "key-bbbbbbbbbb", "key-cccccccccc", "key-aaaaaaaaaa"}
	for _, w := range want {
		cur, ok := p.Current()
		a.True(ok)
		a.Equal(w, cur)
		p.Advance()
	}
}

func TestCurrentNeverReturnsFailedWhileOthersRemain(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa", "key-bbbbbbbbbb", "key-cccccccccc"})
	p.MarkFailed("key-aaaaaaaaaa")
	p.MarkFailed("key-cccccccccc")

	for i := 0; i < 6; i++ {
		cur, ok := p.Current()
		a.True(ok)
		a.Equal("key-bbbbbbbbbb", cur)
		p.Advance()
	}
}

func TestCurrentAllFailedStillYields(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa", "key-bbbbbbbbbb"})
	p.MarkFailed("key-aaaaaaaaaa")
	p.MarkFailed("key-bbbbbbbbbb")

	// The pool still hands out an entry; the upload attempt that follows
	// surfaces the failure and triggers solicitation.
	cur, ok := p.Current()
	a.True(ok)
	a.NotEmpty(cur)
}

func TestAddIsIdempotent(t *testing.T) {
	a := assert.New(t)

	p := New(nil)
	a.True(p.Add("key-aaaaaaaaaa"))
	a.False(p.Add("key-aaaaaaaaaa"))
	a.False(p.Add(""))

	total, valid, failed := p.Counts()
	a.Equal(1, total)
	a.Equal(0, valid)
	a.Equal(0, failed)
}

func TestAddDoesNotResetState(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa"})
	p.MarkValid("key-aaaaaaaaaa")
	p.Add("key-aaaaaaaaaa")

	_, valid, _ := p.Counts()
	a.Equal(1, valid)
}

func TestMarkValidClearsFailure(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa"})
	p.MarkFailed("key-aaaaaaaaaa")
	p.MarkValid("key-aaaaaaaaaa")

	cur, ok := p.Current()
	a.True(ok)
	a.Equal("key-aaaaaaaaaa", cur)

	_, valid, failed := p.Counts()
	a.Equal(1, valid)
	a.Equal(0, failed)
}

func TestSnapshotMasksTokens(t *testing.T) {
	a := assert.New(t)

	p := New([]string{"key-aaaaaaaaaa", "key-bbbbbbbbbb"})
	p.MarkFailed("key-bbbbbbbbbb")
	p.RecordUpload("key-aaaaaaaaaa")
	p.RecordUpload("key-aaaaaaaaaa")

	snap := p.Snapshot()
	a.Len(snap, 2)
	a.Equal("…aaaa", snap[0].Key)
	a.Equal(StateUnknown, snap[0].State)
	a.Equal(2, snap[0].Uploads)
	a.Equal("…bbbb", snap[1].Key)
	a.Equal(StateFailed, snap[1].State)
}

func TestMask(t *testing.T) {
	a := assert.New(t)

	a.Equal("abcd", Mask("abcd"))
	a.Equal("…4567", Mask("1234567"))
}
