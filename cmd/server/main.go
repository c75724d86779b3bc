// Command server is the modelserver process entry point: it loads
// configuration, wires the artifact store, registry, dispatcher and
// poller together, runs the startup reconciliation (spec §4.I), then
// serves the HTTP and gRPC interfaces (spec §6) until signaled to
// shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/aiserve/modelserver/internal/api/grpcapi"
	"github.com/aiserve/modelserver/internal/api/httpapi"
	"github.com/aiserve/modelserver/internal/config"
	"github.com/aiserve/modelserver/internal/dispatcher"
	"github.com/aiserve/modelserver/internal/loader"
	"github.com/aiserve/modelserver/internal/logging"
	"github.com/aiserve/modelserver/internal/modelbuild"
	"github.com/aiserve/modelserver/internal/poller"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/service"
	"github.com/aiserve/modelserver/internal/store"
	"github.com/aiserve/modelserver/internal/store/azureblob"
	"github.com/aiserve/modelserver/internal/store/localfs"
	"github.com/aiserve/modelserver/internal/store/s3store"
)

var (
	configPath string
	debugMode  bool
)

func main() {
	setupRuntimeOptimizations()

	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flag.BoolVar(&debugMode, "debug", false, "Enable debug mode")
	flag.Parse()

	if debugMode {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Debug mode enabled")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logging.SyslogConfig{
		Enabled:  cfg.Logging.SyslogEnabled,
		Network:  cfg.Logging.SyslogNetwork,
		Address:  cfg.Logging.SyslogAddress,
		Tag:      cfg.Logging.SyslogTag,
		Facility: cfg.Logging.SyslogFacility,
		FilePath: cfg.Logging.LogFile,
	}
	if err := logging.Initialize(logCfg); err != nil {
		log.Printf("Warning: Failed to initialize syslog: %v", err)
	}
	defer func() {
		if l := logging.GetLogger(); l != nil {
			l.Close()
		}
	}()

	logLevel := logging.INFO
	if debugMode || cfg.Logging.Level == "debug" {
		logLevel = logging.DEBUG
	}
	logging.InitStructuredLogger("modelserver", logLevel)

	logging.Info("starting modelserver", map[string]interface{}{"store_kind": string(cfg.Store.Kind)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}

	reg := registry.New()

	scratchRoot := os.Getenv("MODEL_SCRATCH_DIR")
	if scratchRoot == "" {
		scratchRoot = "/tmp/modelserver-scratch"
	}
	builder, err := modelbuild.New(st, scratchRoot)
	if err != nil {
		log.Fatalf("Failed to initialize model builder: %v", err)
	}

	pol := poller.New(st, reg, builder.Build, cfg.Poller.Interval)

	if err := loader.Run(ctx, pol); err != nil {
		log.Fatalf("Startup reconciliation failed: %v", err)
	}

	disp := dispatcher.New(cfg.Worker.Count, cfg.Worker.Count*4)
	defer disp.Stop()

	svc := service.New(reg, disp, builder, st)

	go pol.Run(ctx)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           httpapi.New(svc).Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Printf("Starting HTTP server on %s", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	grpcSrv := grpcapi.NewGRPCServer()
	grpcapi.RegisterModelServerServer(grpcSrv, grpcapi.New(svc))

	go func() {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("gRPC listen failed: %v", err)
		}
		log.Printf("Starting gRPC server on %s", grpcAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("gRPC server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down servers...")
	cancel() // stop the poller loop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	grpcSrv.GracefulStop()
	log.Println("gRPC server stopped")

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server forced to shutdown: %v", err)
	}

	log.Println("Servers exited gracefully")
}

// buildStore constructs the one store.Store driver named by
// cfg.Store.Kind (spec §4.D). MinIO reuses the S3 driver pointed at a
// custom endpoint with path-style addressing.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Kind {
	case config.StoreLocal:
		return localfs.New(cfg.Store.Dir)
	case config.StoreS3, config.StoreMinIO:
		return s3store.New(ctx, s3store.Options{
			Bucket:       cfg.Store.Bucket,
			Region:       cfg.Store.Region,
			Endpoint:     cfg.Store.Endpoint,
			AccessKey:    cfg.Store.AccessKey,
			SecretKey:    cfg.Store.SecretKey,
			UsePathStyle: cfg.Store.UsePathStyle || cfg.Store.Kind == config.StoreMinIO,
		})
	case config.StoreAzure:
		return azureblob.New(azureblob.Options{
			Account:   cfg.Store.Account,
			Container: cfg.Store.Container,
			AccessKey: cfg.Store.AccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

func setupRuntimeOptimizations() {
	numCPU := runtime.NumCPU()
	if cpuLimit := os.Getenv("CPU_LIMIT"); cpuLimit != "" {
		if limit, err := strconv.Atoi(cpuLimit); err == nil && limit > 0 {
			numCPU = limit
		}
	}
	runtime.GOMAXPROCS(numCPU)
	log.Printf("GOMAXPROCS set to %d", numCPU)

	debug.SetGCPercent(200)

	log.Println("Runtime optimizations applied")
}
