package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errInvalidRole = errors.New("invalid role")

// Register prompts for the profile fields and creates an account. A blank
// role registers a student.
func (a *App) Register(ctx context.Context) error {
	var p models.Profile
	var err error

	if p.FirstName, err = getSimpleText(a.reader, "First name", a.out); err != nil {
		return err
	}
	if p.LastName, err = getSimpleText(a.reader, "Last name", a.out); err != nil {
		return err
	}
	if p.Email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
		return err
	}
	role, err := getSimpleText(a.reader, "Role (blank for student)", a.out)
	if err != nil {
		return err
	}
	if role != "" {
		p.Role = models.Role(role)
		if !p.Role.Valid() {
			printlnFn("Unknown role:", role)
			return errInvalidRole
		}
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	p.Password = string(password)

	if err := a.store.Register(ctx, p); err != nil {
		a.report(ctx, "register", err)
		return err
	}
	return nil
}

// Login prompts for credentials and authenticates. On success the session
// event handler prints the dashboard.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.store.Login(ctx, email, string(password)); err != nil {
		a.report(ctx, "login", err)
		return err
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.store.Logout(ctx)
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	id := a.store.CurrentIdentity()
	if id == nil {
		printlnFn("Not logged in")
		return nil
	}
	printlnFn(fmt.Sprintf("%s <%s> role=%s id=%s", displayName(id), id.Email, id.Role, id.ID))
	return nil
}

// report prints a user-facing line for err and logs the detail.
func (a *App) report(ctx context.Context, op string, err error) {
	a.log.Debug(ctx, op+" failed", "error", err)

	switch {
	case errors.Is(err, common.ErrCredentialsRejected):
		printlnFn("Rejected:", err.Error())
	case errors.Is(err, common.ErrSessionExpired):
		// The session event handler already told the user.
	case errors.Is(err, common.ErrNetworkFailure):
		printlnFn("Server unreachable, try again later")
	default:
		printlnFn("Error:", err.Error())
	}
}
