// Command seeder fills the subscription store with fake devices for local
// testing of the dispatch pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"notify-service/internal/config"
	"notify-service/internal/migrate"
	"notify-service/internal/shared/db"
	"notify-service/internal/shared/logging"
	"notify-service/internal/subscription"
)

const fcmSendPrefix = "https://fcm.googleapis.com/fcm/send/"

// fakeSubscriptions returns devices for users recipients. Every recipient
// gets between one and maxDevices endpoints; every tenth endpoint uses the
// legacy raw-token form.
func fakeSubscriptions(f *gofakeit.Faker, users, maxDevices int) []subscription.Subscription {
	if maxDevices < 1 {
		maxDevices = 1
	}
	var out []subscription.Subscription
	for range users {
		rid := f.UUID()
		for range f.Number(1, maxDevices) {
			tok := f.LetterN(22) + ":" + f.LetterN(140)
			ep := fcmSendPrefix + tok
			if len(out)%10 == 9 {
				ep = tok
			}
			out = append(out, subscription.Subscription{
				RecipientID: rid,
				Endpoint:    ep,
				DeviceInfo:  f.UserAgent(),
			})
		}
	}
	return out
}

func seed(ctx context.Context, c *cli.Command) error {
	cfg := config.Load()
	logging.Setup(cfg.Env, c.String("log-level"))

	store, err := db.Open(ctx, cfg.DSN(), nil)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() { _ = store.Close() }()

	if c.Bool("migrate") {
		if err := migrate.AutoMigrateAll(store); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	f := gofakeit.New(c.Int64("seed"))
	repo := subscription.NewRepository(store)
	subs := fakeSubscriptions(f, int(c.Int("users")), int(c.Int("devices")))
	for i := range subs {
		if err := repo.Upsert(ctx, &subs[i]); err != nil {
			return fmt.Errorf("upsert %s: %w", subs[i].RecipientID, err)
		}
	}

	lg := logging.Component("seeder")
	recipients := map[string]struct{}{}
	for _, s := range subs {
		recipients[s.RecipientID] = struct{}{}
	}
	lg.Info().Int("recipients", len(recipients)).Int("subscriptions", len(subs)).Msg("seeded")
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "seeder",
		Usage: "insert fake push subscriptions",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "users",
				Usage: "number of recipients to create",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "devices",
				Usage: "maximum devices per recipient",
				Value: 3,
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "random seed (0 picks a random one)",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "create the schema before seeding",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
		},
		Action: seed,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("seeder failed")
	}
}
