// Package tunnel exposes the local companion API through a cloudflared
// quick tunnel.
package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// urlPattern matches the public URL cloudflared prints while bringing a
// quick tunnel up.
var urlPattern = regexp.MustCompile(`https://[a-zA-Z0-9-]+\.trycloudflare\.com`)

const (
	urlPollAttempts = 60
	urlPollInterval = 500 * time.Millisecond
)

// Tunnel is a running cloudflared process forwarding a public URL to a
// local port.
type Tunnel struct {
	url     string
	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
}

// Options configures how the tunnel is started.
type Options struct {
	// Binary is the cloudflared executable. Defaults to "cloudflared".
	Binary string

	// Port is the local port to expose.
	Port int
}

// Start launches cloudflared against the local port and waits for the
// public trycloudflare URL to appear in its output.
func Start(ctx context.Context, opts Options) (*Tunnel, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "cloudflared"
	}

	cmd := exec.Command(binary,
		"tunnel", "--no-autoupdate",
		"--url", "http://localhost:"+strconv.Itoa(opts.Port),
	)

	// cloudflared logs the assigned URL to stderr.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("tunnel: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("tunnel: start cloudflared: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	urlCh := make(chan string, 1)
	go scanForURL(stderr, urlCh)

	deadline := time.NewTimer(urlPollAttempts * urlPollInterval)
	defer deadline.Stop()

	select {
	case url := <-urlCh:
		return &Tunnel{url: url, process: cmd.Process, waitErr: waitErr}, nil
	case err := <-waitErr:
		return nil, fmt.Errorf("tunnel: cloudflared exited before a URL was assigned: %w", err)
	case <-deadline.C:
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, errors.New("tunnel: timed out waiting for the public URL")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	}
}

// scanForURL reads process output line by line until the public URL shows
// up, then keeps draining so the pipe never blocks the process.
func scanForURL(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	found := false
	for scanner.Scan() {
		if found {
			continue
		}
		if url := urlPattern.FindString(scanner.Text()); url != "" {
			out <- url
			found = true
		}
	}
}

// URL returns the public trycloudflare URL.
func (t *Tunnel) URL() string {
	return t.url
}

// Stop terminates the cloudflared process. The quick tunnel disappears
// with it.
func (t *Tunnel) Stop() {
	t.stopOnce.Do(func() {
		_ = t.process.Signal(os.Interrupt)
		select {
		case <-t.waitErr:
		case <-time.After(2 * time.Second):
			_ = t.process.Kill()
			<-t.waitErr
		}
	})
}
