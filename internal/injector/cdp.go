package injector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// CDPRuntime reaches pages through the host's remote-debugging endpoint.
type CDPRuntime struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	mu    sync.Mutex
	pages map[target.ID]*cdpPage
}

// NewCDPRuntime connects lazily to the debugging endpoint on port.
func NewCDPRuntime(ctx context.Context, port int) *CDPRuntime {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, fmt.Sprintf("http://127.0.0.1:%d", port))
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return &CDPRuntime{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		pages:         make(map[target.ID]*cdpPage),
	}
}

// Pages lists page targets, skipping devtools windows. Page contexts are
// cached and reused so attaching never opens or closes a window.
func (r *CDPRuntime) Pages(ctx context.Context) ([]Page, error) {
	infos, err := chromedp.Targets(r.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	live := make(map[target.ID]bool, len(infos))
	var pages []Page
	for _, info := range infos {
		if info.Type != "page" || strings.HasPrefix(info.URL, "devtools://") {
			continue
		}
		live[info.TargetID] = true

		p, ok := r.pages[info.TargetID]
		if !ok {
			pctx, cancel := chromedp.NewContext(r.browserCtx, chromedp.WithTargetID(info.TargetID))
			p = &cdpPage{ctx: pctx, cancel: cancel, id: info.TargetID}
			r.pages[info.TargetID] = p
		}
		p.url = info.URL
		pages = append(pages, p)
	}

	// Only released once the target is gone; cancelling a live page
	// context would close its window.
	for id, p := range r.pages {
		if !live[id] {
			p.cancel()
			delete(r.pages, id)
		}
	}
	return pages, nil
}

// Close drops the debugging connection. Pages in the host stay open.
func (r *CDPRuntime) Close() {
	r.cancelBrowser()
	r.cancelAlloc()
}

type cdpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     target.ID
	url    string
}

func (p *cdpPage) ID() string  { return string(p.id) }
func (p *cdpPage) URL() string { return p.url }

func (p *cdpPage) Evaluate(ctx context.Context, script string, res any) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, chromedp.Evaluate(script, res))
}
