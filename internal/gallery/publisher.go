package gallery

import (
	"context"
	"log"
)

// placeholderTitle is used for the initial create call; the page is
// renamed to its real title in a follow-up edit.
const placeholderTitle = "Image gallery"

// Publisher turns uploaded URL lists into published gallery pages.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Publisher on top of a page API client.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{client: c}
}

// Publish creates the gallery under a placeholder title and renames it to
// title in a second call. When the rename fails the page from the create
// call is returned instead of an error; the gallery is already live at
// that point.
func (p *Publisher) Publish(ctx context.Context, title string, urls []string) (*Page, error) {
	nodes := ImageNodes(urls)
	page, err := p.client.CreatePage(ctx, placeholderTitle, nodes)
	if err != nil {
		return nil, err
	}
	renamed, err := p.client.EditPage(ctx, page.Path, title, nodes)
	if err != nil {
		log.Printf("[gallery] rename of %s failed, keeping placeholder title: %v", page.Path, err)
		return page, nil
	}
	return renamed, nil
}

// Describe re-publishes an existing gallery with a description paragraph
// inserted after the first image.
func (p *Publisher) Describe(ctx context.Context, path, title string, urls []string, text string) (*Page, error) {
	return p.client.EditPage(ctx, path, title, WithDescription(urls, text))
}
