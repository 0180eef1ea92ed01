package webclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/darkscan/internal/logging"
)

// annotationScript records computed visibility and live form state on every
// element so the static snapshot can be scanned like the live page.
const annotationScript = `(() => {
  let n = 0;
  for (const el of document.querySelectorAll('*')) {
    let cs;
    try { cs = window.getComputedStyle(el); } catch (e) { continue; }
    const rect = el.getBoundingClientRect();
    const hidden = cs.display === 'none' || cs.visibility === 'hidden';
    const detached = el.offsetParent === null && cs.position !== 'fixed' && cs.position !== 'absolute' && el.tagName !== 'BODY' && el.tagName !== 'HTML';
    const zeroBox = rect.width === 0 && rect.height === 0;
    const visible = !hidden && parseFloat(cs.opacity) !== 0 && !zeroBox && !detached;
    el.setAttribute('data-darkscan-visible', String(visible));
    el.setAttribute('data-darkscan-hidden', String(hidden));
    el.setAttribute('data-darkscan-opacity', cs.opacity);
    if (el.tagName === 'INPUT') el.setAttribute('data-darkscan-checked', String(!!el.checked));
    if (el.tagName === 'OPTION') el.setAttribute('data-darkscan-selected', String(!!el.selected));
    n++;
  }
  return n;
})()`

// ChromeDPClient renders pages in one long-lived headless tab. Requests are
// serialized on that tab.
type ChromeDPClient struct {
	cfg    Config
	logger logging.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
	loaded    string
}

func NewChromedpClient(cfg Config, logger logging.Logger) (*ChromeDPClient, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.ShowBrowser {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeDPClient{
		cfg:         cfg,
		logger:      logger.With(logging.Field{Key: "backend", Value: "chromedp"}),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() { close(idleChan) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				atomic.StoreInt32(&activeReqs, 0)
				startTimer()
			}
		}
	})
	startTimer()

	return idleChan
}

func (cdc *ChromeDPClient) tab() (context.Context, error) {
	if cdc.tabCtx != nil && cdc.tabCtx.Err() == nil {
		return cdc.tabCtx, nil
	}
	tabCtx, cancel := chromedp.NewContext(cdc.allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	cdc.tabCtx, cdc.tabCancel = tabCtx, cancel
	cdc.loaded = ""
	return tabCtx, nil
}

// Do renders req.URL and returns the annotated document HTML. With
// Options["reuse"] = "true" and the same URL already loaded, the live page
// is snapshotted without navigating.
func (cdc *ChromeDPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	method := strings.ToUpper(req.Method)
	if method != "" && method != http.MethodGet {
		return nil, fmt.Errorf("method %s not supported by chromedp backend", method)
	}

	cdc.mu.Lock()
	defer cdc.mu.Unlock()

	tabCtx, err := cdc.tab()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(tabCtx, cdc.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	reuse := req.Options[OptionReuse] == "true" && cdc.loaded != "" && cdc.loaded == req.URL
	if !reuse {
		idle := waitNetworkIdle(runCtx, cdc.cfg.IdleAfter)
		if err := chromedp.Run(runCtx, network.Enable(), chromedp.Navigate(req.URL)); err != nil {
			cdc.logger.Warn("navigation failed",
				logging.Field{Key: "url", Value: req.URL},
				logging.Field{Key: "error", Value: err.Error()})
			return nil, fmt.Errorf("navigate: %w", err)
		}
		select {
		case <-idle:
		case <-runCtx.Done():
			return nil, fmt.Errorf("wait for network idle: %w", runCtx.Err())
		}
		cdc.loaded = req.URL
	}

	var annotated int
	var html string
	err = chromedp.Run(runCtx,
		chromedp.Evaluate(annotationScript, &annotated),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	cdc.logger.Debug("page snapshot taken",
		logging.Field{Key: "url", Value: req.URL},
		logging.Field{Key: "reused", Value: reuse},
		logging.Field{Key: "annotated", Value: annotated})

	return &Response{
		Request:    req,
		Body:       []byte(html),
		Headers:    http.Header{},
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now(),
	}, nil
}

func (cdc *ChromeDPClient) Close() error {
	cdc.mu.Lock()
	defer cdc.mu.Unlock()
	if cdc.tabCancel != nil {
		cdc.tabCancel()
	}
	cdc.allocCancel()
	return nil
}
