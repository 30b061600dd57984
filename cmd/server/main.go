package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimarket/internal/config"
	"agrimarket/internal/handler"
	"agrimarket/internal/infrastructure/cache"
	"agrimarket/internal/infrastructure/database"
	"agrimarket/internal/infrastructure/lock"
	"agrimarket/internal/infrastructure/logger"
	"agrimarket/internal/infrastructure/mq"
	"agrimarket/internal/job"
	"agrimarket/internal/model"
	"agrimarket/internal/repository"
	"agrimarket/internal/repository/memory"
	"agrimarket/internal/service"
	"agrimarket/pkg/idgen"
	"agrimarket/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Debug())
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := idgen.Init(cfg.Server.Node); err != nil {
		return fmt.Errorf("初始化 ID 生成器失败: %w", err)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	deps := service.Deps{Store: store, Logger: log}
	if cfg.Redis.Enabled {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		deps.Locker = lock.NewLocker(redisClient)
		deps.Cache = cache.NewOrderStatusCache(redisClient)
	}

	var publisher mq.Publisher = mq.NewLogPublisher(log.Named("events"))
	if cfg.Kafka.Enabled {
		kafka, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher = kafka
	}
	defer publisher.Close()

	feeRate, err := cfg.Business.FeeRate()
	if err != nil {
		return err
	}
	settings := service.Settings{
		PlatformFeeRate: feeRate,
		Currency:        cfg.Business.Currency,
		PaymentTimeout:  cfg.Business.PaymentTimeout(),
		OrderTopic:      cfg.Kafka.Topic.OrderEvents,
		LedgerTopic:     cfg.Kafka.Topic.LedgerEvents,
	}
	orders := service.NewOrderService(deps, settings)
	accounts := service.NewAccountService(deps, settings)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 后台任务
	outboxSender := job.NewOutboxSender(store.Outbox(), publisher, cfg.Business.MaxRetryCount, log)
	go outboxSender.Start(ctx)

	timeoutJob := job.NewPaymentTimeoutJob(orders, log)
	go timeoutJob.Start(ctx)

	h := handler.NewHandler(orders, accounts, cfg.Business.DefaultPageSize, cfg.Business.MaxPageSize, log)
	router := handler.SetupRouter(h, store.Users(), metrics.NewServerMetrics("api"), cfg.Server.Debug(), log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")

	// 先停后台任务并等待退出（publisher 在之后才关闭），再关闭 HTTP 服务（最多等待 5 秒）
	cancel()
	outboxSender.Stop()
	timeoutJob.Stop()
	<-outboxSender.Done()
	<-timeoutJob.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("服务关闭异常", zap.Error(err))
	}

	log.Info("服务已关闭")
	return nil
}

func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.NewStore()
		seedDemo(store, log)
		return store, nil
	}

	db, err := database.Open(&cfg.Database, cfg.Server.Debug(), log)
	if err != nil {
		return nil, err
	}
	return repository.NewGormStore(db), nil
}

// seedDemo 内存模式没有用户目录和商品目录，写入一组演示数据
func seedDemo(store *memory.Store, log *zap.Logger) {
	admin := &model.User{Name: "admin", Role: model.RoleAdmin}
	farmer := &model.User{Name: "demo farmer", Role: model.RoleFarmer}
	buyer := &model.User{Name: "demo buyer", Role: model.RoleBuyer, WalletBalance: decimal.RequireFromString("100000.00")}
	store.AddUser(admin)
	store.AddUser(farmer)
	store.AddUser(buyer)

	product := &model.Product{
		SellerID:          farmer.ID,
		Name:              "Maize (50kg bag)",
		PricePerUnit:      decimal.RequireFromString("18500.00"),
		AvailableQuantity: decimal.RequireFromString("200"),
	}
	store.AddProduct(product)

	log.Info("内存模式，已写入演示数据",
		zap.Int64("admin_id", admin.ID),
		zap.Int64("farmer_id", farmer.ID),
		zap.Int64("buyer_id", buyer.ID),
		zap.Int64("product_id", product.ID),
	)
}
