package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipgallery/zipgallery/internal/model"
	"github.com/zipgallery/zipgallery/internal/session"
	"github.com/zipgallery/zipgallery/internal/uploader"
)

func seedPost(e *testEnv) *session.GalleryPost {
	post := &session.GalleryPost{
		Path:  "gallery-07",
		Title: "sunsets",
		URLs:  []string{"https://img.example/a.jpg", "https://img.example/b.jpg"},
		URL:   "https://pages.example/gallery-07",
	}
	e.sessions.SetPost(testRequester, post)
	return post
}

func seedJob(t *testing.T, e *testEnv) *uploader.Job {
	t.Helper()
	job := uploader.NewJob("live-1", testRequester, "busy", []uploader.Item{{Name: "a.jpg", Data: []byte("d")}})
	require.NoError(t, e.sessions.StartJob(testRequester, job))
	return job
}

// ─────────────────────────────────────────────
// Description flow
// ─────────────────────────────────────────────

func TestDescriptionFlowEndToEnd(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")

	e.submit(t, "album.zip", false, "a.jpg")
	e.waitDone(t)
	require.NotNil(t, e.sessions.Post(testRequester))

	e.sendText(t, "golden hour set")

	saved, ok := e.sender.waitFor(t, model.MsgTypeDescriptionSaved).Payload.(model.DescriptionSaved)
	require.True(t, ok)
	a.Equal("album", saved.Title)
	a.NotEmpty(saved.URL)

	// the page is re-published with the same path and the new text
	require.Len(t, e.pub.describes, 1)
	a.Equal("gallery-00", e.pub.describes[0].path)
	a.Equal("golden hour set", e.pub.describes[0].text)
	a.Equal([]string{"https://img.example/a.jpg"}, e.pub.describes[0].urls)

	a.Nil(e.sessions.Post(testRequester))
}

func TestDescriptionRetainedOnFailure(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")
	e.pub.describeErr = errors.New("page api error: PAGE_SAVE_FAILED")
	seedPost(e)

	e.sendText(t, "some caption")

	e.sender.waitForNotice(t, "saving the description failed")
	a.NotNil(e.sessions.Post(testRequester), "a failed save must keep the prompt open")
	a.Equal(-1, e.sender.typeIndex(model.MsgTypeDescriptionSaved))
}

func TestSkipKeepsPublishedGallery(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")
	seedPost(e)

	e.sendText(t, "/skip")

	e.sender.waitForNotice(t, "kept as published: sunsets (2 images)")
	a.Nil(e.sessions.Post(testRequester))
	a.Empty(e.pub.describes)

	e.sendText(t, "/skip")
	e.sender.waitForNotice(t, "no gallery is waiting for a description")
}

func TestFreeTextWithNothingPending(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")

	e.sendText(t, "hello there")
	e.sender.waitForNotice(t, "nothing is waiting for input")
	a.Empty(e.pub.describes)
}

func TestBlankInputIgnored(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")

	e.svc.HandleText(context.Background(), testRequester, "   \n ")
	a.Equal(0, e.sender.count())
}

// ─────────────────────────────────────────────
// Pool commands
// ─────────────────────────────────────────────

func TestAddKeyCommand(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")

	e.sendText(t, "/addkey")
	e.sender.waitForNotice(t, "usage: /addkey")

	e.sendText(t, "/addkey tiny")
	e.sender.waitForNotice(t, "too short (minimum 10 characters)")

	e.sendText(t, "/addkey key-bbbbbbbbbb")
	e.sender.waitForNotice(t, "key …bbbb added to the pool (2 total)")

	e.sendText(t, "/addkey key-bbbbbbbbbb")
	e.sender.waitForNotice(t, "key …bbbb is already in the pool")

	total, _, _ := e.pool.Counts()
	a.Equal(2, total)
}

func TestKeysCommand(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t)

	e.sendText(t, "/keys")
	e.sender.waitForNotice(t, "the credential pool is empty")

	e.pool.Add("key-aaaaaaaaaa")
	e.pool.Add("key-bbbbbbbbbb")
	e.pool.MarkFailed("key-bbbbbbbbbb")

	e.sendText(t, "/keys")
	e.sender.waitForNotice(t, "credential pool: 2 total, 0 valid, 1 failed")
	text := e.sender.noticeText()
	a.Contains(text, "…aaaa")
	a.Contains(text, "…bbbb")
	a.NotContains(text, "key-aaaaaaaaaa", "full tokens must never leave the server")
}

// ─────────────────────────────────────────────
// Session commands
// ─────────────────────────────────────────────

func TestCancelCommandOutsideSolicitation(t *testing.T) {
	e := newTestEnv(t, "key-aaaaaaaaaa")

	e.sendText(t, "/cancel")
	e.sender.waitForNotice(t, "nothing to cancel")

	seedJob(t, e)
	e.sendText(t, "/cancel")
	e.sender.waitForNotice(t, "mid-upload")
}

func TestResetCommand(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")
	seedPost(e)

	e.sendText(t, "/reset")
	e.sender.waitForNotice(t, "session cleared")
	a.Nil(e.sessions.Post(testRequester))

	job := seedJob(t, e)
	e.sendText(t, "/reset")
	e.sender.waitForNotice(t, "a batch that is mid-upload keeps running")
	a.Same(job, e.sessions.Job(testRequester))
}

func TestStatusCommand(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa", "key-bbbbbbbbbb")

	e.sendText(t, "/status")
	e.sender.waitForNotice(t, "idle; pool has 2 keys (0 valid, 0 failed)")

	seedPost(e)
	e.sendText(t, "/status")
	e.sender.waitForNotice(t, "waiting for a description or /skip: https://pages.example/gallery-07")

	seedJob(t, e)
	e.sendText(t, "/status")
	e.sender.waitForNotice(t, "batch live-1 [QUEUED]")
	a.Contains(e.sender.noticeText(), "0/1")
}

func TestHelpAndUnknownCommand(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t, "key-aaaaaaaaaa")

	e.sendText(t, "/help")
	text := e.sender.noticeText()
	a.Contains(text, "/addkey <key>")
	a.Contains(text, "/cancel")
	a.Contains(text, "/skip")

	e.sendText(t, "/wat now")
	e.sender.waitForNotice(t, "unknown command /wat")
}
