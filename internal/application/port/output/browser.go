package output

import (
	"context"

	"orchestra-agent/internal/domain/entity"
)

// PagePort is one browser tab.
type PagePort interface {
	Navigate(ctx context.Context, url string) error
	GetPageContent(ctx context.Context) (*entity.PageContent, error)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	CurrentURL() string
	Close()
}

// BrowserPort drives its default tab directly and hands out private tabs
// through NewPage. Closing the browser closes every tab.
type BrowserPort interface {
	PagePort
	NewPage(ctx context.Context) (PagePort, error)
}
