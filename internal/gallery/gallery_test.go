package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageServer struct {
	*httptest.Server

	createForms []map[string]string
	editForms   []map[string]string
	failEdit    bool
}

func newPageServer(t *testing.T) *pageServer {
	t.Helper()
	ps := &pageServer{}
	mux := http.NewServeMux()
	record := func(r *http.Request) map[string]string {
		require.NoError(t, r.ParseForm())
		m := map[string]string{}
		for k := range r.Form {
			m[k] = r.FormValue(k)
		}
		return m
	}
	mux.HandleFunc("/createPage", func(w http.ResponseWriter, r *http.Request) {
		ps.createForms = append(ps.createForms, record(r))
		fmt.Fprint(w, `{"ok":true,"result":{"path":"page-01-01","url":"https://pages.example/page-01-01"}}`)
	})
	mux.HandleFunc("/editPage", func(w http.ResponseWriter, r *http.Request) {
		ps.editForms = append(ps.editForms, record(r))
		if ps.failEdit {
			fmt.Fprint(w, `{"ok":false,"error":"EDIT_FORBIDDEN"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"path":"page-01-01","url":"https://pages.example/page-01-01"}}`)
	})
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func contentNodes(t *testing.T, form map[string]string) []Node {
	t.Helper()
	var nodes []Node
	require.NoError(t, json.Unmarshal([]byte(form["content"]), &nodes))
	return nodes
}

func TestPublishCreatesThenRenames(t *testing.T) {
	a := assert.New(t)

	srv := newPageServer(t)
	pub := NewPublisher(NewClient(srv.URL, "tok-123", "tester"))

	urls := []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}
	page, err := pub.Publish(context.Background(), "My Album", urls)
	a.NoError(err)
	a.Equal("page-01-01", page.Path)
	a.Equal("https://pages.example/page-01-01", page.URL)

	require.Len(t, srv.createForms, 1)
	a.Equal("Image gallery", srv.createForms[0]["title"])
	a.Equal("tok-123", srv.createForms[0]["access_token"])
	a.Equal("tester", srv.createForms[0]["author_name"])

	nodes := contentNodes(t, srv.createForms[0])
	require.Len(t, nodes, 2)
	a.Equal("img", nodes[0].Tag)
	a.Equal(urls[0], nodes[0].Attrs["src"])
	a.Equal(urls[1], nodes[1].Attrs["src"])

	require.Len(t, srv.editForms, 1)
	a.Equal("page-01-01", srv.editForms[0]["path"])
	a.Equal("My Album", srv.editForms[0]["title"])
}

func TestPublishKeepsPageWhenRenameFails(t *testing.T) {
	a := assert.New(t)

	srv := newPageServer(t)
	srv.failEdit = true
	pub := NewPublisher(NewClient(srv.URL, "tok", ""))

	page, err := pub.Publish(context.Background(), "Album", []string{"https://img.example/1.jpg"})
	a.NoError(err)
	a.Equal("page-01-01", page.Path)
}

func TestDescribeInsertsParagraph(t *testing.T) {
	a := assert.New(t)

	srv := newPageServer(t)
	pub := NewPublisher(NewClient(srv.URL, "tok", ""))

	urls := []string{"https://img.example/1.jpg", "https://img.example/2.jpg", "https://img.example/3.jpg"}
	_, err := pub.Describe(context.Background(), "page-01-01", "Album", urls, "lovely set")
	a.NoError(err)

	require.Len(t, srv.editForms, 1)
	nodes := contentNodes(t, srv.editForms[0])
	require.Len(t, nodes, 4)
	a.Equal("img", nodes[0].Tag)
	a.Equal("p", nodes[1].Tag)
	a.Equal([]string{"lovely set"}, nodes[1].Children)
	a.Equal("img", nodes[2].Tag)
	a.Equal("img", nodes[3].Tag)
}

func TestWithDescriptionSingleImage(t *testing.T) {
	a := assert.New(t)

	nodes := WithDescription([]string{"https://img.example/only.jpg"}, "caption")
	require.Len(t, nodes, 2)
	a.Equal("img", nodes[0].Tag)
	a.Equal("p", nodes[1].Tag)
}

func TestWithDescriptionEmptyText(t *testing.T) {
	a := assert.New(t)

	nodes := WithDescription([]string{"u1", "u2"}, "")
	a.Len(nodes, 2)
	for _, n := range nodes {
		a.Equal("img", n.Tag)
	}
}

func TestCreatePageAPIError(t *testing.T) {
	a := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"ACCESS_TOKEN_INVALID"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", "")
	_, err := c.CreatePage(context.Background(), "t", nil)
	a.Error(err)
	a.Contains(err.Error(), "ACCESS_TOKEN_INVALID")
}

func TestPageURLFallback(t *testing.T) {
	a := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"path":"only-path"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "")
	page, err := c.CreatePage(context.Background(), "t", nil)
	a.NoError(err)
	a.Equal("https://telegra.ph/only-path", page.URL)
}
