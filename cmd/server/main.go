package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/footbar/fulfillment/internal/api"
	"github.com/footbar/fulfillment/internal/config"
	"github.com/footbar/fulfillment/internal/decathlon"
	"github.com/footbar/fulfillment/internal/fnac"
	"github.com/footbar/fulfillment/internal/fulfill"
	"github.com/footbar/fulfillment/internal/ingest"
	"github.com/footbar/fulfillment/internal/keypool"
	"github.com/footbar/fulfillment/internal/leads"
	"github.com/footbar/fulfillment/internal/mailer"
	"github.com/footbar/fulfillment/internal/pkg/distlock"
	"github.com/footbar/fulfillment/internal/routing"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx := context.Background()

	// Tabular backends: key pools, ingestion ledgers and the lead sheet
	// share one storage selection.
	var (
		poolStore   keypool.Store
		ledgerStore ingest.LedgerStore
		leadStore   leads.Store
	)
	switch cfg.Storage.Type {
	case "s3":
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Storage.AWSRegion),
		}
		if profile := cfg.Storage.GetAWSProfile(); profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		s3Client := awss3.NewFromConfig(awsCfg)
		poolStore = keypool.NewS3Store(s3Client, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		ledgerStore = ingest.NewS3LedgerStore(s3Client, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		if cfg.Leads.Enabled {
			leadStore = leads.NewS3Store(s3Client, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix, cfg.Leads.Sheet)
		}
		log.Printf("Storage: s3 bucket=%s prefix=%s", cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
	default:
		fs, err := keypool.NewFileStore(cfg.Storage.LocalPath)
		if err != nil {
			log.Fatalf("Failed to initialize pool store: %v", err)
		}
		ls, err := ingest.NewFileLedgerStore(cfg.Storage.LocalPath)
		if err != nil {
			log.Fatalf("Failed to initialize ledger store: %v", err)
		}
		poolStore, ledgerStore = fs, ls
		if cfg.Leads.Enabled {
			lf, err := leads.NewFileStore(cfg.Storage.LocalPath, cfg.Leads.Sheet)
			if err != nil {
				log.Fatalf("Failed to initialize lead store: %v", err)
			}
			leadStore = lf
		}
		log.Printf("Storage: local path=%s", cfg.Storage.LocalPath)
	}

	// Pool locking. Redis matters only with several replicas over a
	// shared store; a single instance gets the in-process locker.
	var locker distlock.Locker = distlock.NewLocalLocker()
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Redis configured but unreachable (%s): %v", cfg.Redis.Addr, err)
		}
		locker = distlock.NewRedisLocker(redisClient, cfg.Redis.LockTTL())
		log.Printf("Redis pool locking enabled: %s", cfg.Redis.Addr)
	}

	routes, err := routing.New(cfg.Fulfillment.Routes)
	if err != nil {
		log.Fatalf("Invalid routing table: %v", err)
	}

	templates := mailer.NewTemplateStore(cfg.Fulfillment.DefaultLanguage)
	if dir := cfg.Fulfillment.TemplateDir; dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := templates.LoadDir(dir); err != nil {
				log.Fatalf("Failed to load templates from %s: %v", dir, err)
			}
			log.Printf("Templates loaded from %s", dir)
		}
	}

	allocator := keypool.NewAllocator(poolStore, locker)
	notifier := mailer.New(cfg.SendGrid, templates)
	service := fulfill.NewService(routes, allocator, notifier, cfg.Fulfillment)
	poller := ingest.NewPoller(ledgerStore, service, locker)

	sources := make(map[string]ingest.Source)
	if cfg.Decathlon.Enabled {
		sources["decathlon"] = decathlon.NewClient(cfg.Decathlon)
		log.Println("Decathlon poll source enabled")
	}
	if cfg.Fnac.Enabled {
		sources["fnac"] = fnac.NewClient(cfg.Fnac)
		log.Println("Fnac poll source enabled")
	}

	handlers := api.NewHandlers(service, poller, sources, leadStore)
	server := api.NewServer(cfg.Server, handlers, cfg.Leads.AllowedOrigin)

	addr := fmt.Sprintf("%s:%d", host, port)
	go func() {
		log.Printf("Fulfillment server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
