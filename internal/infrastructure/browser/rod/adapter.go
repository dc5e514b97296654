package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var (
	_ output.BrowserPort = (*BrowserAdapter)(nil)
	_ output.PagePort    = (*Page)(nil)
)

const (
	defaultTimeout     = 15 * time.Second
	maxScreenshotWidth = 1024
)

// BrowserAdapter owns the browser process. Its embedded Page is the default
// tab; NewPage opens further tabs that can be driven concurrently.
type BrowserAdapter struct {
	*Page
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration

	closeOnce sync.Once
}

type Page struct {
	page    *rod.Page
	timeout time.Duration
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless: true,
		Timeout:  defaultTimeout,
	}
}

func NewBrowserAdapter(cfg BrowserConfig) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if cfg.SlowMotion > 0 {
		browser = browser.SlowMotion(cfg.SlowMotion)
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &BrowserAdapter{
		Page:     &Page{page: page, timeout: cfg.Timeout},
		browser:  browser,
		launcher: l,
		timeout:  cfg.Timeout,
	}, nil
}

func (b *BrowserAdapter) NewPage(ctx context.Context) (output.PagePort, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &Page{page: page.Context(context.Background()), timeout: b.timeout}, nil
}

func (p *Page) scoped(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.timeout)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.scoped(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page did not load: %w", err)
	}
	_ = page.WaitIdle(5 * time.Second)
	return nil
}

func (p *Page) GetPageContent(ctx context.Context) (*entity.PageContent, error) {
	page := p.scoped(ctx)

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}

	raw, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	return &entity.PageContent{
		URL:   info.URL,
		Title: info.Title,
		Text:  ExtractText(raw, DefaultMaxTextSize),
	}, nil
}

func (p *Page) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	imgBytes, err := p.scoped(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return encodeScreenshot(imgBytes)
}

// encodeScreenshot downsizes wide captures and re-encodes them as JPEG.
func encodeScreenshot(raw []byte) (*entity.Screenshot, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > maxScreenshotWidth {
		img = imaging.Resize(img, maxScreenshotWidth, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (p *Page) CurrentURL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) Close() {
	_ = p.page.Close()
}

func (b *BrowserAdapter) Close() {
	b.closeOnce.Do(func() {
		if b.browser != nil {
			_ = b.browser.Close()
		}
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher.Cleanup()
		}
	})
}
