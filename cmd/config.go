package cmd

import "github.com/spf13/viper"

func settingDefaultConfig() {
	// Enable automatic environment variable binding
	viper.AutomaticEnv()

	// Map environment variables to Viper keys for PostgreSQL
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.db", "POSTGRES_DB")

	// Map environment variables to Viper keys for the server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Map environment variables to Viper keys for the pipeline
	viper.BindEnv("clipper.temp_dir", "CLIPPER_TEMP_DIR")
	viper.BindEnv("clipper.uploads_dir", "CLIPPER_UPLOADS_DIR")
	viper.BindEnv("clipper.ytdlp_binary", "CLIPPER_YTDLP_BINARY")
	viper.BindEnv("clipper.ffmpeg_binary", "CLIPPER_FFMPEG_BINARY")

	// Map environment variables to Viper keys for YouTube publishing
	viper.BindEnv("youtube.credentials_file", "YOUTUBE_CREDENTIALS_FILE")
	viper.BindEnv("youtube.token_file", "YOUTUBE_TOKEN_FILE")
	viper.BindEnv("youtube.chunk_size", "YOUTUBE_CHUNK_SIZE")

	viper.BindEnv("webhook.timeout", "WEBHOOK_TIMEOUT")

	// Set default values for PostgreSQL
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.db", "clipsmith")

	// Set default values for the server
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", "5s")

	// Set default values for the pipeline
	viper.SetDefault("clipper.temp_dir", "temp")
	viper.SetDefault("clipper.uploads_dir", "uploads")
	viper.SetDefault("clipper.ytdlp_binary", "yt-dlp")
	viper.SetDefault("clipper.ffmpeg_binary", "ffmpeg")

	// Set default values for YouTube publishing
	viper.SetDefault("youtube.credentials_file", "client_secret.json")
	viper.SetDefault("youtube.token_file", "token.json")
	viper.SetDefault("youtube.chunk_size", 1024*1024)

	viper.SetDefault("webhook.timeout", "10s")
}
