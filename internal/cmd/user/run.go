// Package user manages bot accounts directly against the database.
package user

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"text/tabwriter"

	"photokeep/internal/auth"
	"photokeep/internal/db"
	"photokeep/internal/setup"
)

// loginRe enforces a conservative login pattern.
var loginRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

func Run(args []string) error {
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	var (
		dbPath  string
		add     string
		name    string
		role    string
		passwd  string
		disable string
		enable  string
		list    bool
	)
	fs.StringVar(&dbPath, "db", "./data/photokeep.db", "sqlite database path")
	fs.StringVar(&add, "add", "", "create an account with this login")
	fs.StringVar(&name, "name", "", "display name for -add (defaults to login)")
	fs.StringVar(&role, "role", db.RoleOperator, "role for -add: operator|admin")
	fs.StringVar(&passwd, "passwd", "", "set a new password for this login")
	fs.StringVar(&disable, "disable", "", "disable this login")
	fs.StringVar(&enable, "enable", "", "enable this login")
	fs.BoolVar(&list, "list", false, "list accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	d, err := db.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer d.Close()

	switch {
	case add != "":
		return addUser(ctx, d, add, name, role)
	case passwd != "":
		return setPassword(ctx, d, passwd)
	case disable != "":
		return setEnabled(ctx, d, disable, false)
	case enable != "":
		return setEnabled(ctx, d, enable, true)
	case list:
		return listUsers(ctx, d)
	}
	return errors.New("one of -add, -passwd, -disable, -enable, or -list is required")
}

func addUser(ctx context.Context, d *db.DB, login, name, role string) error {
	if !loginRe.MatchString(login) {
		return errors.New("invalid login")
	}
	if role != db.RoleOperator && role != db.RoleAdmin {
		return errors.New("role must be operator or admin")
	}
	if name == "" {
		name = login
	}
	pass, err := setup.PromptPassword("Password for " + login)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pass, auth.DefaultParams())
	if err != nil {
		return err
	}
	if _, err := d.CreateUser(ctx, login, hash, name, role); err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", login, role)
	return nil
}

func setPassword(ctx context.Context, d *db.DB, login string) error {
	u, ok, err := d.GetUserByLogin(ctx, login)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no such login")
	}
	pass, err := setup.PromptPassword("New password for " + login)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pass, auth.DefaultParams())
	if err != nil {
		return err
	}
	if err := d.SetUserPasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	fmt.Printf("password updated for %s\n", login)
	return nil
}

func setEnabled(ctx context.Context, d *db.DB, login string, enabled bool) error {
	u, ok, err := d.GetUserByLogin(ctx, login)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no such login")
	}
	if err := d.SetUserEnabled(ctx, u.ID, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("%s %s\n", state, login)
	return nil
}

func listUsers(ctx context.Context, d *db.DB) error {
	users, err := d.ListUsers(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOGIN\tNAME\tROLE\tENABLED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", u.Login, u.DisplayName, u.Role, u.Enabled)
	}
	return w.Flush()
}
