// Command devtoken prints an HS256 access token accepted by the booking
// server when it verifies tokens locally with JWT_SECRET.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iliyamo/event-seat-booking/internal/model"
	"github.com/iliyamo/event-seat-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "devtoken",
		Usage: "issue a local access token for the booking API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sub", Value: "dev-user", Usage: "user id"},
			&cli.StringFlag{Name: "name", Value: "Dev User", Usage: "display name"},
			&cli.StringFlag{Name: "email", Value: "dev@example.com", Usage: "email address"},
			&cli.StringFlag{Name: "role", Value: "user", Usage: "role, e.g. user or admin"},
			&cli.DurationFlag{Name: "ttl", Value: time.Hour, Usage: "token lifetime"},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Usage: "HS256 signing secret"},
		},
		Action: func(c *cli.Context) error {
			secret := c.String("secret")
			if secret == "" {
				return errors.New("JWT_SECRET must be set")
			}
			who := model.Identity{
				ID:    c.String("sub"),
				Name:  c.String("name"),
				Email: c.String("email"),
				Role:  c.String("role"),
			}
			tok, err := utils.NewAccessToken(secret, who, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(tok.Token)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
