// Package admincli is the sysadmin console for member maintenance that does
// not go through the self-service portal: resetting and dropping database
// roles, changing login shells, and inspecting member records.
package admincli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/server/repositories/dbaccounts"
	"github.com/netsoclabs/memberd/internal/server/repositories/members"
)

// validPassword mirrors the character set the portal generates database
// passwords from. Keeping resets within it means no quoting surprises in
// members' SQL clients.
var validPassword = regexp.MustCompile(`^[A-Za-z0-9]{8,64}$`)

// DirectoryAccounts is the slice of the directory registry the console
// needs for login-password resets and shell changes.
type DirectoryAccounts interface {
	UpdatePassword(ctx context.Context, username, password string) error
	UpdateShell(ctx context.Context, username, shell string) error
}

type App struct {
	db          *sql.DB
	members     members.Repository
	dbAccounts  dbaccounts.Repository
	directory   DirectoryAccounts
	loginShells []string
	out         io.Writer
}

func NewApp(db *sql.DB, directory DirectoryAccounts, loginShells []string, out io.Writer) *App {
	return &App{
		db:          db,
		members:     members.NewPostgresRepository(db),
		dbAccounts:  dbaccounts.NewPostgresRepository(db),
		directory:   directory,
		loginShells: loginShells,
		out:         out,
	}
}

// Run dispatches a single command and returns its error. Usage problems are
// reported as errors too so main can exit non-zero.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: memberd-admin <resetdb|dropdb|resetlogin|chsh|info> <username> [shell]")
	}
	command, username := args[0], args[1]

	switch command {
	case "resetdb":
		return a.resetDBPassword(ctx, username)
	case "dropdb":
		return a.dropDBAccount(ctx, username)
	case "resetlogin":
		return a.resetLoginPassword(ctx, username)
	case "chsh":
		if len(args) < 3 {
			return errors.New("usage: memberd-admin chsh <username> <shell>")
		}
		return a.changeShell(ctx, username, args[2])
	case "info":
		return a.memberInfo(ctx, username)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *App) resetDBPassword(ctx context.Context, username string) error {
	password, err := GetPassword(a.out, "New database password: ")
	if err != nil {
		return err
	}
	if !validPassword.MatchString(password) {
		return errors.New("password must be 8-64 characters of letters and digits")
	}
	confirm, err := GetPassword(a.out, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if err := a.dbAccounts.UpdatePassword(ctx, username, password); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no database account for %q", username)
		}
		return err
	}
	fmt.Fprintf(a.out, "Password updated for %s\n", username)
	return nil
}

func (a *App) resetLoginPassword(ctx context.Context, username string) error {
	password, err := GetPassword(a.out, "New login password: ")
	if err != nil {
		return err
	}
	if !validPassword.MatchString(password) {
		return errors.New("password must be 8-64 characters of letters and digits")
	}
	confirm, err := GetPassword(a.out, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if err := a.directory.UpdatePassword(ctx, username, password); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no directory account for %q", username)
		}
		return err
	}
	fmt.Fprintf(a.out, "Login password updated for %s\n", username)
	return nil
}

func (a *App) changeShell(ctx context.Context, username, shell string) error {
	if !a.shellAllowed(shell) {
		return fmt.Errorf("shell %q is not in the allowed list %v", shell, a.loginShells)
	}
	if err := a.directory.UpdateShell(ctx, username, shell); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no directory account for %q", username)
		}
		return err
	}
	fmt.Fprintf(a.out, "Login shell for %s set to %s\n", username, shell)
	return nil
}

func (a *App) shellAllowed(shell string) bool {
	for _, s := range a.loginShells {
		if s == shell {
			return true
		}
	}
	return false
}

func (a *App) dropDBAccount(ctx context.Context, username string) error {
	if err := a.dbAccounts.Drop(ctx, username); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Database account for %s dropped\n", username)
	return nil
}

func (a *App) memberInfo(ctx context.Context, username string) error {
	rec, err := a.members.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no member record for %q", username)
		}
		return err
	}

	fmt.Fprintf(a.out, "username:        %s\n", rec.Username)
	fmt.Fprintf(a.out, "name:            %s\n", rec.Name)
	fmt.Fprintf(a.out, "email:           %s\n", rec.Email)
	fmt.Fprintf(a.out, "student id:      %s\n", rec.StudentID)
	fmt.Fprintf(a.out, "course:          %s\n", rec.Course)
	fmt.Fprintf(a.out, "graduation year: %s\n", rec.GraduationYear)
	fmt.Fprintf(a.out, "uid/gid:         %d/%d\n", rec.UIDNumber, rec.GIDNumber)
	fmt.Fprintf(a.out, "registered:      %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
