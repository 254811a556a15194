// Package browser captures live pages as static markup the dom package can
// parse: open shadow roots become declarative templates, same-origin frames
// become srcdoc, and every control's current value is written into its
// value/checked/selected markup.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/dom"
)

// DefaultNavigationTimeout bounds page load
const DefaultNavigationTimeout = 30 * time.Second

// ErrClosed is returned after Close
var ErrClosed = errors.New("snapshotter closed")

const serializeJS = `() => {
	const VOID = new Set(['area','base','br','col','embed','hr','img','input','link','meta','source','track','wbr']);
	const esc = (s) => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
	const quote = (s) => s.replace(/&/g, '&amp;').replace(/"/g, '&quot;');
	const kids = (parent) => {
		let out = '';
		for (const c of parent.childNodes) out += ser(c);
		return out;
	};
	const ser = (node) => {
		if (node.nodeType === Node.TEXT_NODE) return esc(node.data);
		if (node.nodeType !== Node.ELEMENT_NODE) return '';
		const tag = node.localName;
		if (tag === 'script' || tag === 'noscript') return '';
		const attrs = new Map();
		for (const a of node.attributes) attrs.set(a.name, a.value);
		if (tag === 'input') {
			const t = (node.type || '').toLowerCase();
			if (t === 'checkbox' || t === 'radio') {
				if (node.checked) attrs.set('checked', ''); else attrs.delete('checked');
			} else if (t !== 'file' && t !== 'password') {
				attrs.set('value', node.value);
			}
		}
		if (tag === 'option') {
			if (node.selected) attrs.set('selected', ''); else attrs.delete('selected');
		}
		if (tag === 'iframe') {
			try {
				if (node.contentDocument && node.contentDocument.documentElement) {
					attrs.set('srcdoc', '<!DOCTYPE html>' + ser(node.contentDocument.documentElement));
				}
			} catch (e) {}
		}
		let out = '<' + tag;
		for (const [k, v] of attrs) out += ' ' + k + '="' + quote(v) + '"';
		out += '>';
		if (VOID.has(tag)) return out;
		if (node.shadowRoot) out += '<template shadowrootmode="open">' + kids(node.shadowRoot) + '</template>';
		if (tag === 'textarea') out += esc(node.value);
		else if (tag === 'template') out += kids(node.content);
		else out += kids(node);
		return out + '</' + tag + '>';
	};
	return {url: location.href, html: '<!DOCTYPE html>' + ser(document.documentElement)};
}`

// Options configures the browser connection
type Options struct {
	// ControlURL is a DevTools websocket URL; empty launches a local browser
	ControlURL        string
	Headless          bool
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

// Snapshot is the serialized state of one page
type Snapshot struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// Snapshotter lazily connects to Chrome and serializes pages on demand. It is
// safe for concurrent use.
type Snapshotter struct {
	opts Options

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// New creates a snapshotter. No browser is started until the first snapshot.
func New(opts Options) *Snapshotter {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Snapshotter{opts: opts}
}

func (s *Snapshotter) connect(ctx context.Context) (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return s.browser, nil
		}
		s.opts.Logger.Warn("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
	}

	controlURL := s.opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(s.opts.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = b
	s.opts.Logger.Info("browser connected", zap.Bool("launched", s.launcher != nil))
	return b, nil
}

// Snapshot opens url in a fresh page, waits for it to load and serializes it
func (s *Snapshotter) Snapshot(ctx context.Context, url string) (*Snapshot, error) {
	b, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(s.opts.NavigationTimeout)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for %s to load: %w", url, err)
	}

	res, err := page.Evaluate(&rod.EvalOptions{JS: serializeJS, ByValue: true})
	if err != nil || res == nil {
		return nil, fmt.Errorf("serialize %s: %w", url, err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	s.opts.Logger.Debug("page snapshot taken",
		zap.String("url", snap.URL),
		zap.Int("bytes", len(snap.HTML)))
	return &snap, nil
}

// Document snapshots url and parses the result
func (s *Snapshotter) Document(ctx context.Context, url string) (*dom.Document, error) {
	snap, err := s.Snapshot(ctx, url)
	if err != nil {
		return nil, err
	}
	return snap.Document()
}

// Document parses the snapshot markup
func (snap *Snapshot) Document() (*dom.Document, error) {
	return dom.ParseString(snap.HTML, snap.URL)
}

// Close disconnects and, when the browser was launched here, kills it
func (s *Snapshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return err
}
