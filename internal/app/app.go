// Package app はサブコマンドごとの依存関係の組み立てと起動を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/jobberwocky/internal/config"
	"github.com/hitoshi/jobberwocky/internal/database"
	"github.com/hitoshi/jobberwocky/internal/handler"
	"github.com/hitoshi/jobberwocky/internal/jobsource"
	"github.com/hitoshi/jobberwocky/internal/listing"
	"github.com/hitoshi/jobberwocky/internal/logger"
	"github.com/hitoshi/jobberwocky/internal/metrics"
	"github.com/hitoshi/jobberwocky/internal/middleware"
	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/notify"
	"github.com/hitoshi/jobberwocky/internal/repository"
	"github.com/hitoshi/jobberwocky/internal/search"
	"github.com/hitoshi/jobberwocky/internal/security"
	"github.com/hitoshi/jobberwocky/internal/subscription"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数でConfigを読み込み、ログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("ログレベルの指定が不正なためinfoを使用します", slog.String("log_level", cfg.LogLevel))
		logger.SetLevel("info")
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("app_name", cfg.AppName),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行い、
// 実行中の通知配信が終わるまで待つ。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. リポジトリ
	listingRepo := repository.NewPostgresListingRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)

	// 4. 外部求人ソース
	httpClient, err := newExternalHTTPClient(cfg)
	if err != nil {
		return err
	}
	source := jobsource.NewClient(httpClient, cfg.ExternalSourceURL, cfg.ExternalSourceMaxSize, log, collector)

	// 5. 通知
	dispatcher := newDispatcher(cfg, subRepo, log, collector)
	publisher, closePublisher, err := newPublisher(cfg, dispatcher, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	// 6. ドメインサービス
	listingService := listing.NewService(listingRepo, publisher, log, collector)
	searchService := search.NewService(listingRepo, source, log)
	subService := subscription.NewService(subRepo, log)

	// 7. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitCreate), log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:              log,
		CORSAllowedOrigin:   cfg.CORSAllowedOrigin,
		RateLimiter:         rateLimiter,
		ListingService:      listingService,
		SearchService:       searchService,
		SubscriptionService: subService,
		Health: handler.HealthCheckerFunc(func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}),
		Metrics: metrics.Handler(reg),
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ExternalSourceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	serverErr := make(chan error, 1)

	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	log.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if p, ok := publisher.(*notify.InProcessPublisher); ok {
		p.Wait()
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はRedisキューの通知コンシューマとして起動する。
// SIGINTまたはSIGTERMシグナルを受信すると処理中のイベントを終えてから停止する。
func runWorker(cfg *config.Config) error {
	if cfg.NotifyQueue != config.NotifyQueueRedis {
		return fmt.Errorf("worker requires NOTIFY_QUEUE=%s (current: %s)", config.NotifyQueueRedis, cfg.NotifyQueue)
	}
	log := slog.Default()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	subRepo := repository.NewPostgresSubscriptionRepo(db)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	dispatcher := newDispatcher(cfg, subRepo, log, collector)
	consumer := notify.NewQueueConsumer(client, notify.DefaultQueueKey, dispatcher, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runSeed はサンプル求人を投入する。作成イベントは発行しない。
func runSeed(cfg *config.Config) error {
	inputs, err := database.LoadSeedListings(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed listings: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := seedListings(context.Background(), repository.NewPostgresListingRepo(db), inputs)
	if err != nil {
		return err
	}
	slog.Info("サンプル求人を投入しました", slog.Int("count", n))
	return nil
}

// seedListings はリポジトリに直接求人を保存する。途中で失敗した場合は保存済みの件数とエラーを返す。
func seedListings(ctx context.Context, repo repository.ListingRepository, inputs []model.ListingInput) (int, error) {
	for i, in := range inputs {
		if _, err := repo.Create(ctx, in); err != nil {
			return i, fmt.Errorf("failed to seed listing %d (%s): %w", i+1, in.Title, err)
		}
	}
	return len(inputs), nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// newExternalHTTPClient は外部求人ソース用のHTTPクライアントを生成する。
// EXTERNAL_SOURCE_SSRF_GUARD が有効な場合はベースURLを検証し、SSRF防止付きクライアントを返す。
func newExternalHTTPClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.ExternalSourceSSRFGuard {
		return &http.Client{Timeout: cfg.ExternalSourceTimeout}, nil
	}

	guard := security.NewSSRFGuard(guardPorts(cfg.ExternalSourceURL)...)
	if err := guard.ValidateURL(cfg.ExternalSourceURL); err != nil {
		return nil, fmt.Errorf("external source URL rejected: %w", err)
	}
	return guard.NewSafeClient(cfg.ExternalSourceTimeout), nil
}

// guardPorts は80と443に加え、ベースURLで明示されたポートを許可対象として返す。
func guardPorts(rawURL string) []int {
	ports := []int{80, 443}
	u, err := url.Parse(rawURL)
	if err != nil || u.Port() == "" {
		return ports
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil || p == 80 || p == 443 {
		return ports
	}
	return append(ports, p)
}

// newDispatcher は設定に応じたSenderで通知ディスパッチャを組み立てる。
func newDispatcher(cfg *config.Config, subs notify.SubscriberLister, log *slog.Logger, m notify.Metrics) *notify.Dispatcher {
	renderer := notify.NewRenderer(cfg.AppName, security.NewMailSanitizer())
	return notify.NewDispatcher(subs, renderer, newSender(cfg, log), log, m)
}

// newSender はMAIL_MAILERに応じたSenderを返す。
func newSender(cfg *config.Config, log *slog.Logger) notify.Sender {
	if cfg.Mailer == config.MailerSMTP {
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:       cfg.MailHost,
			Port:       cfg.MailPort,
			Username:   cfg.MailUsername,
			Password:   cfg.MailPassword,
			Encryption: cfg.MailEncryption,
			From:       cfg.MailFromAddress,
			Timeout:    cfg.MailSendTimeout,
		})
	}
	return notify.NewLogSender(log)
}

// newPublisher はNOTIFY_QUEUEに応じたイベント発行者を返す。
// 戻り値の関数で保持しているリソースを解放する。
func newPublisher(cfg *config.Config, h notify.EventHandler, log *slog.Logger) (listing.EventPublisher, func(), error) {
	if cfg.NotifyQueue != config.NotifyQueueRedis {
		return notify.NewInProcessPublisher(h, log), func() {}, nil
	}

	client, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return notify.NewRedisPublisher(client, notify.DefaultQueueKey), func() { client.Close() }, nil
}

// newRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func newRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return "***"
	}
	return u.Redacted()
}
