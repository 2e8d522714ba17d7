package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpHdlr "clipsmith/handler/http"
	"clipsmith/src/core/clipper"
	"clipsmith/src/core/thumbnail"
	"clipsmith/src/core/webhook"
	"clipsmith/src/fsutil"
	"clipsmith/src/infrastructure/execx"
	"clipsmith/src/infrastructure/integrations/ffmpeg"
	"clipsmith/src/infrastructure/integrations/youtube"
	"clipsmith/src/infrastructure/integrations/ytdlp"
	"clipsmith/src/infrastructure/job"
	"clipsmith/src/infrastructure/log"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the clip API server and job pipeline",
	Long: `The serve command starts the HTTP API and the in-process pipeline
that downloads, trims and publishes submitted clips.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	settingDefaultConfig()
}

func runServer(cmd *cobra.Command, args []string) error {
	// Initialize PostgreSQL connection
	host := viper.GetString("postgres.host")
	user := viper.GetString("postgres.user")
	password := viper.GetString("postgres.password")
	dbname := viper.GetString("postgres.db")
	port := viper.GetString("postgres.port")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&job.Job{}); err != nil {
		return fmt.Errorf("failed to migrate jobs table: %w", err)
	}

	repo := job.NewPostgresJobRepository(db)

	// Initialize pipeline stages
	fileStore := fsutil.NewLocalFileStore()
	runner := execx.NewExecRunner()

	downloader := ytdlp.NewDownloader(viper.GetString("clipper.ytdlp_binary"), nil, runner)
	transcoder := ffmpeg.New(viper.GetString("clipper.ffmpeg_binary"), runner)
	publisher := youtube.NewClient(
		viper.GetString("youtube.credentials_file"),
		viper.GetString("youtube.token_file"),
		viper.GetInt("youtube.chunk_size"),
	)
	thumbnails := thumbnail.NewResolver(transcoder, fileStore, &http.Client{Timeout: 10 * time.Second})

	dispatcher, err := webhook.NewDispatcher(viper.GetDuration("webhook.timeout"))
	if err != nil {
		return fmt.Errorf("failed to create webhook dispatcher: %w", err)
	}

	clipService, err := clipper.NewService(
		clipper.Config{
			TempDir:    viper.GetString("clipper.temp_dir"),
			UploadsDir: viper.GetString("clipper.uploads_dir"),
		},
		repo,
		downloader,
		transcoder,
		publisher,
		thumbnails,
		dispatcher,
		fileStore,
	)
	if err != nil {
		return fmt.Errorf("failed to create clipper service: %w", err)
	}

	// In-process pub/sub: submission publishes, the router handler runs the
	// pipeline. Jobs stay local to this process.
	wmLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	defer pubSub.Close()

	jobService := job.NewJobService(pubSub, repo, clipService)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create message router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	router.AddNoPublisherHandler(
		"clip_pipeline",
		job.TopicClipJobs,
		pubSub,
		jobService.ProcessJobMessage,
	)

	routerCtx, cancelRouter := context.WithCancel(context.Background())
	defer cancelRouter()
	go func() {
		if err := router.Run(routerCtx); err != nil {
			log.Error(err, "Message router stopped")
		}
	}()

	// The gochannel Pub/Sub drops publishes that have no subscriber yet, so
	// submissions must not be accepted until the handlers are attached.
	<-router.Running()

	// Setup gin router
	r := gin.Default()

	handler := httpHdlr.NewClipHandler(jobService, repo, dispatcher)
	handler.RegisterRoutes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
		}
	}()
	log.Info("Server started", "port", viper.GetString("server.port"))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	timeout := viper.GetDuration("server.shutdown_timeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	cancelRouter()

	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
	} else if err := sqlDB.Close(); err != nil {
		log.Error(err, "Error closing database connection")
	}

	log.Info("Server exited")
	return nil
}
