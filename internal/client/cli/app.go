package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/certhub/internal/client/gateway"
	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/client/session"
	"github.com/dmitrijs2005/certhub/internal/logging"
)

// sessionStore is the part of *session.Store the CLI uses.
type sessionStore interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, p models.Profile) error
	Logout(ctx context.Context)
	CurrentIdentity() *models.Identity
	Subscribe(fn func(session.Event)) (cancel func())
}

// requester is the part of *gateway.Gateway the CLI uses.
type requester interface {
	Send(ctx context.Context, endpoint string, req *gateway.Request, out any) error
	UploadFile(ctx context.Context, endpoint, field, filename string, content []byte, out any) error
}

type App struct {
	store    sessionStore
	gw       requester
	log      logging.Logger
	reader   *bufio.Reader
	out      io.Writer
	readFile func(string) ([]byte, error)
}

func NewApp(store sessionStore, gw requester, log logging.Logger) *App {
	return &App{
		store:    store,
		gw:       gw,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		readFile: os.ReadFile,
	}
}

// Run subscribes to session events and blocks in the REPL until the user
// exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	cancel := a.store.Subscribe(a.onEvent)
	defer cancel()

	printlnFn("Welcome to certhub CLI (type 'help' for commands)")
	if id := a.store.CurrentIdentity(); id != nil {
		printlnFn(fmt.Sprintf("Signed in as %s, dashboard: %s", displayName(id), dashboardPath(id.Role)))
	}

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.store.CurrentIdentity() != nil
}

func (a *App) status() string {
	id := a.store.CurrentIdentity()
	if id == nil {
		return ""
	}
	return fmt.Sprintf("(%s %s)", id.Email, id.Role)
}

// onEvent is where navigation happens: the store only reports transitions.
func (a *App) onEvent(ev session.Event) {
	switch ev.Type {
	case session.EventEstablished:
		if ev.Identity != nil {
			printlnFn(fmt.Sprintf("Signed in as %s, dashboard: %s", displayName(ev.Identity), dashboardPath(ev.Identity.Role)))
		}
	case session.EventCleared:
		switch ev.Reason {
		case session.ReasonExpired:
			printlnFn("Session expired, please log in again.")
		case session.ReasonCorrupt:
			printlnFn("Stored session could not be read and was discarded.")
		case session.ReasonLogout:
			printlnFn("Logged out.")
		}
	}
}

func displayName(id *models.Identity) string {
	if n := id.FullName(); n != "" {
		return n
	}
	return id.Email
}
