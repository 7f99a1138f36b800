package setup

import (
	"context"
	"flag"

	"photokeep/internal/setup"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var opt setup.Options
	fs.StringVar(&opt.DBPath, "db", "./data/photokeep.db", "sqlite database path")
	fs.StringVar(&opt.PhotosDir, "photos-dir", "./photos", "photo storage root")
	fs.StringVar(&opt.AdminLogin, "admin-login", "admin", "initial admin login")
	fs.StringVar(&opt.AdminName, "admin-name", "", "initial admin display name (defaults to login)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return setup.Run(context.Background(), opt)
}
