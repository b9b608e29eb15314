package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/session"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config   *config.Config
	client   client.Client
	store    session.Store
	userName string
	reader   *bufio.Reader
	out      io.Writer

	// mode is written by the status watcher and read by the prompt
	modeMu sync.Mutex
	mode   Mode
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	a := newApp(c, apiClient, os.Stdin, os.Stdout)

	if c.DataDir != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		st, err := session.Open(ctx, c.DataDir)
		if err != nil {
			_ = apiClient.Close()
			return nil, err
		}
		if err := a.attachSession(ctx, st); err != nil {
			_ = st.Close()
			_ = apiClient.Close()
			return nil, err
		}
	}
	return a, nil
}

func newApp(c *config.Config, cl client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: cl, reader: bufio.NewReader(in), out: out}
}

// attachSession restores a saved login and keeps st in sync with every
// token change from then on.
func (a *App) attachSession(ctx context.Context, st session.Store) error {
	s, err := st.Load(ctx)
	if err != nil {
		return err
	}
	a.store = st
	if !s.Empty() {
		a.client.Restore(s.AccessToken, s.RefreshToken)
		a.userName = s.UserName
	}
	a.client.OnTokensChanged(a.persistTokens)
	return nil
}

func (a *App) persistTokens(access, refresh string) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if refresh == "" {
		a.userName = ""
		err = a.store.Clear(ctx)
	} else {
		err = a.store.Save(ctx, session.Session{UserName: a.userName, AccessToken: access, RefreshToken: refresh})
	}
	if err != nil {
		log.Printf("session: %v", err)
	}
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.mode
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// withTimeout bounds a single server call.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if m := a.Mode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Run starts the connectivity watcher and the REPL and blocks until the
// user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.client.Close()
	if a.store != nil {
		defer a.store.Close()
	}

	a.println("Welcome to authctl (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.client.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
