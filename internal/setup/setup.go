// Package setup initializes the database and the first admin account.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"photokeep/internal/auth"
	"photokeep/internal/db"
)

type Options struct {
	DBPath     string
	PhotosDir  string
	AdminLogin string
	AdminName  string
}

func Run(ctx context.Context, opt Options) error {
	if opt.DBPath == "" {
		return errors.New("db path is required")
	}
	if opt.PhotosDir == "" {
		return errors.New("photos-dir is required")
	}
	if opt.AdminLogin == "" {
		return errors.New("admin login is required")
	}
	if opt.AdminName == "" {
		opt.AdminName = opt.AdminLogin
	}
	if err := os.MkdirAll(filepath.Dir(opt.DBPath), 0o700); err != nil {
		return err
	}
	if err := os.MkdirAll(opt.PhotosDir, 0o700); err != nil {
		return err
	}

	d, err := db.Open(ctx, opt.DBPath)
	if err != nil {
		return err
	}
	defer d.Close()
	_ = os.Chmod(opt.DBPath, 0o600)

	initialized, err := d.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return errors.New("already initialized")
	}

	pass, err := PromptPassword("Set password for admin " + opt.AdminLogin)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pass, auth.DefaultParams())
	if err != nil {
		return err
	}
	if _, err := d.CreateUser(ctx, opt.AdminLogin, hash, opt.AdminName, db.RoleAdmin); err != nil {
		return err
	}

	return d.SetInitialized(ctx)
}

// PromptPassword reads a password twice without echo when stdin is a
// terminal, falling back to line input for piped stdin.
func PromptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression
	// isn't possible here.
	r := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		p1, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm password: ")
		p2, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		p1 = strings.TrimSpace(p1)
		p2 = strings.TrimSpace(p2)
		if p1 == "" {
			fmt.Fprintln(os.Stderr, "password cannot be empty")
			continue
		}
		if p1 != p2 {
			fmt.Fprintln(os.Stderr, "passwords do not match")
			continue
		}
		return p1, nil
	}
}
