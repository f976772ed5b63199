// Package tokenfile supplies session credentials from a token file
// owned by the auth subsystem. The file holding a bearer token means an
// authenticated session; a missing or empty file means anonymous.
package tokenfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rynott/cartcore/internal/core/port"
)

var _ port.AuthWatcher = (*Provider)(nil)

type Provider struct {
	path string

	mu     sync.RWMutex
	token  string
	subs   map[int]func(port.Credentials)
	nextID int
}

func New(path string) *Provider {
	p := &Provider{
		path: path,
		subs: make(map[int]func(port.Credentials)),
	}
	p.token = readToken(path)
	return p
}

func (p *Provider) Credentials() port.Credentials {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return port.Credentials{Token: p.token}
}

func (p *Provider) Subscribe(fn func(port.Credentials)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Watch follows the token file until ctx is done, notifying subscribers
// on every credential transition. The parent directory is watched so
// atomic replace-by-rename writes are seen too.
func (p *Provider) Watch(ctx context.Context) error {
	const op = "Provider.Watch"
	log := slog.With("op", op)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("watching token file", "path", p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			p.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("token file watch error", "err", err)
		}
	}
}

// Reload re-reads the token file and notifies subscribers if the
// credentials changed.
func (p *Provider) Reload() {
	token := readToken(p.path)

	p.mu.Lock()
	if token == p.token {
		p.mu.Unlock()
		return
	}
	p.token = token
	subs := make([]func(port.Credentials), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	creds := port.Credentials{Token: token}
	for _, fn := range subs {
		fn(creds)
	}
}

func readToken(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
