package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"marqlet-monitor/api"
	"marqlet-monitor/datajud"
	"marqlet-monitor/domain"
	"marqlet-monitor/monitor"
	"marqlet-monitor/storage"
	"marqlet-monitor/whatsapp"
)

func main() {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	names := storage.Names{
		Publications: os.Getenv("PUBLICATIONS_TABLE"),
		Tasks:        os.Getenv("TASKS_TABLE"),
		Cases:        os.Getenv("CASES_TABLE"),
		Credentials:  os.Getenv("CREDENTIALS_TABLE"),
		Profiles:     os.Getenv("PROFILES_TABLE"),
		RefreshQueue: os.Getenv("REFRESH_QUEUE"),
	}
	if connStr == "" || names.Publications == "" || names.Tasks == "" || names.Cases == "" ||
		names.Credentials == "" || names.Profiles == "" || names.RefreshQueue == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, names)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	rc := redis.NewClient(redisOptions())
	cache := storage.NewCache(store, rc, durationEnv("PUBLICATIONS_CACHE_TTL", 5*time.Minute))

	apiKey := os.Getenv("DATAJUD_API_KEY")
	if apiKey == "" {
		log.Fatal("missing DATAJUD_API_KEY")
	}
	fetcher := datajud.NewClient(apiKey, logger)

	notifier := monitor.NewRedisNotifier(rc, envOrDefault("PUBLICATIONS_CHANNEL", "publications:new"), logger)
	ingestor := monitor.NewIngestor(fetcher, cache, store, notifier, logger)
	publications := monitor.NewPublicationService(store, cache)

	reminderService := monitor.NewReminderService(monitor.ReminderConfig{
		Tasks:       store,
		Credentials: store,
		Sender:      whatsapp.NewClient(),
		Guard:       monitor.NewRedisClaimGuard(rc, durationEnv("CLAIM_GUARD_TTL", time.Hour)),
		DefaultCredential: domain.ChannelCredential{
			Token:      os.Getenv("WHATSAPP_TOKEN"),
			PhoneID:    os.Getenv("WHATSAPP_PHONE_ID"),
			APIBaseURL: envOrDefault("WHATSAPP_API_URL", whatsapp.DefaultAPIBaseURL),
			FromNumber: os.Getenv("WHATSAPP_FROM_NUMBER"),
		},
		Lookahead: durationEnv("REMINDER_WINDOW", monitor.DefaultLookahead),
		Logger:    logger,
	})

	scheduler := monitor.NewScheduler(
		store,
		reminderService,
		store,
		durationEnv("REMINDER_INTERVAL", time.Minute),
		durationEnv("REFRESH_INTERVAL", 30*time.Minute),
		logger,
	)
	consumer := monitor.NewRefreshConsumer(store, ingestor, durationEnv("REFRESH_IDLE", time.Second), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)
	go consumer.Run(ctx)

	auth := newAuth()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	api.Register(e, ingestor, publications, reminderService, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func newAuth() *api.Auth {
	if os.Getenv("AUTH0_TEST_MODE") == "1" {
		return api.NewAuth(nil, "", "")
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	authDomain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || authDomain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
}

// redisOptions accepts either a redis URL or the "host:port,option=value"
// connection string format used by managed Redis offerings.
func redisOptions() *redis.Options {
	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	return redisOpts
}

func durationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
