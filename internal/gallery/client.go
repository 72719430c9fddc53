package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Node is one element of page content.
type Node struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []string          `json:"children,omitempty"`
}

// Page references a published page.
type Page struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

const defaultPageHost = "https://telegra.ph"

// Client talks to the Telegraph-style page API.
type Client struct {
	baseURL    string
	token      string
	author     string
	httpClient *http.Client
}

// NewClient creates a page API client.
func NewClient(baseURL, token, author string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		author:     author,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreatePage publishes a new page and returns its reference.
func (c *Client) CreatePage(ctx context.Context, title string, content []Node) (*Page, error) {
	return c.call(ctx, "createPage", title, content)
}

// EditPage replaces the title and content of an existing page.
func (c *Client) EditPage(ctx context.Context, path, title string, content []Node) (*Page, error) {
	form := url.Values{}
	form.Set("path", path)
	return c.callForm(ctx, "editPage", title, content, form)
}

func (c *Client) call(ctx context.Context, method, title string, content []Node) (*Page, error) {
	return c.callForm(ctx, method, title, content, url.Values{})
}

type apiResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result Page   `json:"result"`
}

func (c *Client) callForm(ctx context.Context, method, title string, content []Node, form url.Values) (*Page, error) {
	body, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	form.Set("access_token", c.token)
	form.Set("title", title)
	form.Set("content", string(body))
	if c.author != "" {
		form.Set("author_name", c.author)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%s returned %d: %w", method, resp.StatusCode, err)
	}
	if !parsed.OK {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %s", method, msg)
	}
	if parsed.Result.Path == "" {
		return nil, fmt.Errorf("%s: response carries no page path", method)
	}
	if parsed.Result.URL == "" {
		parsed.Result.URL = defaultPageHost + "/" + parsed.Result.Path
	}
	return &parsed.Result, nil
}

// ImageNodes builds one img node per hosted URL, preserving order.
func ImageNodes(urls []string) []Node {
	nodes := make([]Node, 0, len(urls))
	for _, u := range urls {
		nodes = append(nodes, Node{Tag: "img", Attrs: map[string]string{"src": u}})
	}
	return nodes
}

// WithDescription builds gallery content with a paragraph inserted
// between the first and second image, or after the image when there is
// only one.
func WithDescription(urls []string, text string) []Node {
	nodes := ImageNodes(urls)
	if text == "" || len(nodes) == 0 {
		return nodes
	}
	para := Node{Tag: "p", Children: []string{text}}
	if len(nodes) == 1 {
		return append(nodes, para)
	}
	out := make([]Node, 0, len(nodes)+1)
	out = append(out, nodes[0], para)
	return append(out, nodes[1:]...)
}
