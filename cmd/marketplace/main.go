package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"relic-services/api"
	"relic-services/blob"
	"relic-services/db"
	"relic-services/ledger"
	"relic-services/payout"
	"relic-services/reliclog"
	"relic-services/types"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/microcosm-cc/bluemonday"
	"github.com/ninja-software/terror/v2"
	"github.com/oklog/run"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	_ "github.com/lib/pq"
)

// Variable passed in at compile time using `-ldflags`
var (
	Version   string // -X main.Version=$(git describe --tags --abbrev=0)
	GitHash   string // -X main.GitHash=$(git rev-parse HEAD)
	GitBranch string // -X main.GitBranch=$(git rev-parse --abbrev-ref HEAD)
	BuildDate string // -X main.BuildDate=$(date -u +%Y%m%d%H%M%S)
)

const envPrefix = "MARKETPLACE"

func main() {
	app := &cli.App{
		Compiled: time.Now(),
		Usage:    "Run the marketplace server or database administration commands",
		Commands: []*cli.Command{
			{
				Name: "version",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "full", Usage: "Prints full version and build info", Value: false},
				},
				Action: func(c *cli.Context) error {
					if c.Bool("full") {
						fmt.Printf("Version=%s\n", Version)
						fmt.Printf("Commit=%s\n", GitHash)
						fmt.Printf("Branch=%s\n", GitBranch)
						fmt.Printf("BuildDate=%s\n", BuildDate)
						return nil
					}
					fmt.Printf("%s\n", Version)
					return nil
				},
			},
			{
				Name:  "db",
				Usage: "Run database migrations",
				Flags: append(dbFlags(),
					&cli.BoolFlag{Name: "down", Value: false, Usage: "Migrate down instead of up"},
				),
				Action: func(c *cli.Context) error {
					return migrateDB(connString(c), c.Bool("down"))
				},
			},
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Flags: append(dbFlags(),
					&cli.StringFlag{Name: "environment", Value: "development", EnvVars: []string{envPrefix + "_ENVIRONMENT", "ENVIRONMENT"}, Usage: "This program environment (development, testing, staging, production), it sets the log levels"},
					&cli.StringFlag{Name: "api_addr", Value: ":8086", EnvVars: []string{envPrefix + "_API_ADDR", "API_ADDR"}, Usage: "host:port to run the API"},
					&cli.StringFlag{Name: "marketplace_web_host_url", Value: "http://localhost:5003", EnvVars: []string{envPrefix + "_HOST_URL_FRONTEND"}, Usage: "The public site URL used for CORS"},

					&cli.StringFlag{Name: "jwt_encrypt_key", Value: "supersecret123", EnvVars: []string{envPrefix + "_JWT_ENCRYPT_KEY"}, Usage: "HMAC key for bearer tokens"},
					&cli.IntFlag{Name: "jwt_expiry_days", Value: 7, EnvVars: []string{envPrefix + "_JWT_EXPIRY_DAYS"}, Usage: "How many days before the jwt expires"},
					&cli.StringFlag{Name: "sign_message", Value: "Welcome to the marketplace! Sign this message to connect", EnvVars: []string{envPrefix + "_SIGN_MESSAGE"}, Usage: "The message to sign in the wallet connect flow, needs to match frontend"},

					&cli.StringFlag{Name: "overpayment_policy", Value: "refund", EnvVars: []string{envPrefix + "_OVERPAYMENT_POLICY"}, Usage: "What to do with payment above the listing price (refund, reject)"},
					&cli.StringFlag{Name: "payout_signer_key", Value: "", EnvVars: []string{envPrefix + "_PAYOUT_SIGNER_KEY"}, Usage: "Hex encoded operator key used to sign withdrawal vouchers"},

					&cli.Int64Flag{Name: "max_file_size", Value: 100 * 1024 * 1024, EnvVars: []string{envPrefix + "_MAX_FILE_SIZE"}, Usage: "Maximum upload size in bytes"},
					&cli.Int64Flag{Name: "max_thumbnail_size", Value: 10 * 1024 * 1024, EnvVars: []string{envPrefix + "_MAX_THUMBNAIL_SIZE"}, Usage: "Maximum thumbnail size in bytes"},

					&cli.StringFlag{Name: "sentry_dsn_backend", Value: "", EnvVars: []string{envPrefix + "_SENTRY_DSN_BACKEND", "SENTRY_DSN_BACKEND"}, Usage: "Sends error to remote server. If set, it will send error."},
					&cli.StringFlag{Name: "sentry_server_name", Value: "dev-pc", EnvVars: []string{envPrefix + "_SENTRY_SERVER_NAME", "SENTRY_SERVER_NAME"}, Usage: "The machine name that this program is running on."},
					&cli.Float64Flag{Name: "sentry_sample_rate", Value: 1, EnvVars: []string{envPrefix + "_SENTRY_SAMPLE_RATE", "SENTRY_SAMPLE_RATE"}, Usage: "The percentage of trace sample to collect (0.0-1)"},
				),
				Action: func(c *cli.Context) error {
					return serve(c)
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "database_user", Value: "marketplace", EnvVars: []string{envPrefix + "_DATABASE_USER", "DATABASE_USER"}, Usage: "The database user"},
		&cli.StringFlag{Name: "database_pass", Value: "dev", EnvVars: []string{envPrefix + "_DATABASE_PASS", "DATABASE_PASS"}, Usage: "The database pass"},
		&cli.StringFlag{Name: "database_host", Value: "localhost", EnvVars: []string{envPrefix + "_DATABASE_HOST", "DATABASE_HOST"}, Usage: "The database host"},
		&cli.StringFlag{Name: "database_port", Value: "5432", EnvVars: []string{envPrefix + "_DATABASE_PORT", "DATABASE_PORT"}, Usage: "The database port"},
		&cli.StringFlag{Name: "database_name", Value: "marketplace", EnvVars: []string{envPrefix + "_DATABASE_NAME", "DATABASE_NAME"}, Usage: "The database name"},
	}
}

func connString(c *cli.Context) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.String("database_user"),
		c.String("database_pass"),
		c.String("database_host"),
		c.String("database_port"),
		c.String("database_name"),
	)
}

func migrateDB(connString string, down bool) error {
	sqlDB, err := sql.Open("postgres", connString)
	if err != nil {
		return terror.Error(err)
	}
	defer sqlDB.Close()

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return terror.Error(err)
	}
	source, err := httpfs.New(http.FS(db.Migrations), "migrations")
	if err != nil {
		return terror.Error(err)
	}
	defer source.Close()

	mig, err := migrate.NewWithInstance("embed", source, "postgres", driver)
	if err != nil {
		return terror.Error(err)
	}
	if down {
		err = mig.Down()
	} else {
		err = mig.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		return terror.Error(err)
	}
	return nil
}

func serve(c *cli.Context) error {
	environment := c.String("environment")
	log := reliclog.New(environment)
	log.Info().Msg("zerolog initialised")

	err := reliclog.SentryInit(
		c.String("sentry_dsn_backend"),
		c.String("sentry_server_name"),
		Version,
		environment,
		c.Float64("sentry_sample_rate"),
		log,
	)
	if err != nil {
		return terror.Error(err)
	}

	config := &types.Config{
		Environment:           environment,
		APIAddr:               c.String("api_addr"),
		MarketplaceHostURL:    c.String("marketplace_web_host_url"),
		EncryptTokensKey:      c.String("jwt_encrypt_key"),
		TokenExpirationDays:   c.Int("jwt_expiry_days"),
		SignMessage:           c.String("sign_message"),
		OverpaymentPolicy:     types.OverpaymentPolicy(c.String("overpayment_policy")),
		MaxFileSizeBytes:      c.Int64("max_file_size"),
		MaxThumbnailSizeBytes: c.Int64("max_thumbnail_size"),
		PayoutSignerKey:       c.String("payout_signer_key"),
	}

	switch config.OverpaymentPolicy {
	case types.OverpaymentRefund, types.OverpaymentReject:
	default:
		return terror.Error(fmt.Errorf("invalid overpayment policy %q", config.OverpaymentPolicy))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := pgConnect(ctx, connString(c), log)
	if err != nil {
		return terror.Error(err, "")
	}

	signer, err := payout.NewKeySigner(config.PayoutSignerKey)
	if err != nil {
		return terror.Error(err, "payout signer key is required to serve")
	}
	log.Info().Str("operator", signer.OperatorAddress().String()).Msg("payout signer ready")

	marketLedger := ledger.New(conn, reliclog.NamedLogger(log, "ledger"), signer, config.OverpaymentPolicy)
	blobStore := blob.NewPgStore(conn)
	htmlSanitize := bluemonday.UGCPolicy()

	server := api.NewAPI(log, conn, marketLedger, blobStore, htmlSanitize, config)

	g := &run.Group{}
	g.Add(func() error {
		return server.Run(ctx)
	}, func(err error) {
		cancel()
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt))

	err = g.Run()
	if err != nil {
		if _, ok := err.(run.SignalError); ok {
			log.Info().Msg("shutting down")
			return nil
		}
		return terror.Error(err)
	}
	return nil
}

func pgConnect(ctx context.Context, connString string, log *zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, terror.Error(err, "")
	}
	poolConfig.MaxConns = 20

	conn, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, terror.Error(err, "")
	}
	log.Info().Msg("database connected")
	return conn, nil
}
