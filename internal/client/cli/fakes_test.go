package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/certhub/internal/client/gateway"
	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/client/session"
	"github.com/dmitrijs2005/certhub/internal/logging"
)

type fakeStore struct {
	identity *models.Identity

	loginEmail, loginPass string
	loginErr              error
	loginRes              *models.Identity

	profile     models.Profile
	registerErr error

	logoutCalls int
	subs        []func(session.Event)
}

func (f *fakeStore) Login(_ context.Context, email, password string) error {
	f.loginEmail, f.loginPass = email, password
	if f.loginErr != nil {
		return f.loginErr
	}
	f.identity = f.loginRes
	return nil
}

func (f *fakeStore) Register(_ context.Context, p models.Profile) error {
	f.profile = p
	return f.registerErr
}

func (f *fakeStore) Logout(context.Context) {
	f.logoutCalls++
	f.identity = nil
}

func (f *fakeStore) CurrentIdentity() *models.Identity { return f.identity.Clone() }

func (f *fakeStore) Subscribe(fn func(session.Event)) func() {
	f.subs = append(f.subs, fn)
	return func() { f.subs = nil }
}

func (f *fakeStore) emit(ev session.Event) {
	for _, fn := range f.subs {
		fn(ev)
	}
}

type fakeGateway struct {
	endpoint string
	req      *gateway.Request
	resp     string
	err      error

	field, filename string
	content         []byte
}

func (f *fakeGateway) Send(_ context.Context, endpoint string, req *gateway.Request, out any) error {
	f.endpoint, f.req = endpoint, req
	if f.err != nil {
		return f.err
	}
	if raw, ok := out.(*json.RawMessage); ok && f.resp != "" {
		*raw = json.RawMessage(f.resp)
	}
	return nil
}

func (f *fakeGateway) UploadFile(_ context.Context, endpoint, field, filename string, content []byte, out any) error {
	f.endpoint, f.field, f.filename, f.content = endpoint, field, filename, content
	return f.err
}

func newTestApp(store *fakeStore, gw *fakeGateway) *App {
	a := NewApp(store, gw, logging.Discard())
	a.reader = bufio.NewReader(strings.NewReader(""))
	a.out = io.Discard
	return a
}

// stubInputs answers successive text prompts from texts and every password
// prompt with password.
func stubInputs(t *testing.T, texts []string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	i := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if i >= len(texts) {
			return "", io.EOF
		}
		s := texts[i]
		i++
		return s, nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return append([]byte(nil), password...), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}
