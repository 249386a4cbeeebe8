package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/examprep/internal/config"
    "github.com/local/examprep/internal/extract"
    "github.com/local/examprep/internal/filetype"
    "github.com/local/examprep/internal/gen"
    "github.com/local/examprep/internal/limiter"
    logpkg "github.com/local/examprep/internal/logger"
    "github.com/local/examprep/internal/metrics"
    "github.com/local/examprep/internal/ocr"
    "github.com/local/examprep/internal/pdf"
    "github.com/local/examprep/internal/review"
    "github.com/local/examprep/internal/server"
    "github.com/local/examprep/internal/store"
    "github.com/local/examprep/internal/uploads"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    opt, err := redis.ParseURL(cfg.Redis.URL)
    if err != nil {
        log.Fatal().Err(err).Msg("invalid REDIS_URL")
    }
    rdb := redis.NewClient(opt)
    if err := rdb.Ping(context.Background()).Err(); err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rdb.Close()

    ctx := context.Background()

    var uploadStore uploads.Store
    switch cfg.Storage.Backend {
    case "s3":
        uploadStore, err = uploads.NewS3Store(ctx, cfg.Storage.S3Bucket, rdb)
        if err != nil { log.Fatal().Err(err).Msg("failed to init S3 upload store") }
    default:
        uploadStore, err = uploads.NewLocalStore(cfg.Storage.LocalDir, rdb)
        if err != nil { log.Fatal().Err(err).Msg("failed to init local upload store") }
    }

    pipeline := extract.NewPipeline(
        pdf.NewFitzOpener(),
        ocr.NewVisionFactory(cfg.Extract.OCRTimeout),
        &uploadSaver{store: uploadStore},
        extract.Options{RasterScale: cfg.Extract.RasterScale, ProbeThreshold: cfg.Extract.ProbeThreshold},
        *logpkg.Get(),
    )

    reviewStore := review.NewStore(rdb)
    lim := limiter.New(rdb, limiter.Options{
        MaxInflight: cfg.Gateway.MaxInflight,
        BaseBackoff: cfg.Gateway.CooldownBase,
        MaxBackoff:  cfg.Gateway.CooldownMax,
    })

    srv := server.New(server.Dependencies{
        Extractor:    pipeline,
        Generator:    gen.NewClient(cfg.Gateway, *logpkg.Get()),
        Runs:         store.NewRedisRuns(rdb),
        Uploads:      uploadStore,
        Review:       reviewStore,
        Limiter:      lim,
        Validate:     server.DefaultValidator(filetype.New()),
        WrongSink:    reviewStore,
        BookmarkSink: reviewStore,
        MaxUploadMB:  cfg.Extract.MaxUploadMB,
    }, *logpkg.Get())

    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    port := os.Getenv("PORT")
    if port == "" { port = "8080" }
    httpSrv := &http.Server{Addr: ":" + port, Handler: mux}

    go func() {
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = httpSrv.Shutdown(shutdownCtx)
    fmt.Println("shutdown complete")
}

// uploadSaver adapts the uploads store to the pipeline's narrower seam.
type uploadSaver struct {
    store uploads.Store
}

func (u *uploadSaver) SaveUpload(ctx context.Context, ownerID, fileName, filePath, extractedText string) (string, error) {
    rec, err := u.store.SaveUpload(ctx, ownerID, fileName, filePath, extractedText)
    if err != nil { return "", err }
    return rec.ID, nil
}
