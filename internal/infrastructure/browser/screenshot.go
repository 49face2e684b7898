package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeCapturer renders a page in headless Chrome and captures an
// above-the-fold screenshot for the vision judge. Each capture runs in its
// own browser context so a wedged page cannot poison later captures.
type ChromeCapturer struct {
	timeout time.Duration
}

func NewChromeCapturer(timeout time.Duration) *ChromeCapturer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChromeCapturer{timeout: timeout}
}

// Capture navigates to the URL and returns PNG bytes of the viewport.
func (c *ChromeCapturer) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, c.timeout)
	defer cancelRun()

	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(2*time.Second), // let lazy product imagery settle
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", pageURL, err)
	}
	return buf, nil
}
