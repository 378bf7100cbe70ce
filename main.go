package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/vidacademy/livekit-tutor/pkg/agent"
	"github.com/vidacademy/livekit-tutor/pkg/credentials"
	"github.com/vidacademy/livekit-tutor/pkg/export"
	"github.com/vidacademy/livekit-tutor/pkg/http/rest"
	"github.com/vidacademy/livekit-tutor/pkg/media"
	"github.com/vidacademy/livekit-tutor/pkg/session"
)

func getEnvOrFail(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("%s not set", key)
	}
	return val
}

func main() {
	// Get env variables
	port := getEnvOrFail("APP_PORT")
	lkURL := getEnvOrFail("LIVEKIT_URL")
	lkAPIKey := getEnvOrFail("LIVEKIT_API_KEY")
	lkAPISecret := getEnvOrFail("LIVEKIT_API_SECRET")
	agentBaseURL := getEnvOrFail("AGENT_API_BASE_URL")
	agentCustomerID := getEnvOrFail("AGENT_CUSTOMER_ID")
	agentCustomerSecret := getEnvOrFail("AGENT_CUSTOMER_SECRET")
	llmURL := getEnvOrFail("LLM_URL")
	llmKey := getEnvOrFail("LLM_API_KEY")
	llmModel := getEnvOrFail("LLM_MODEL")
	logLevel := os.Getenv("LOG_LEVEL")

	// Get log verbosity
	var verbosity log.Lvl
	switch strings.ToLower(logLevel) {
	case "debug":
		verbosity = log.DEBUG
	case "info":
		verbosity = log.INFO
	case "warn":
		verbosity = log.WARN
	case "error":
		fallthrough
	default:
		verbosity = log.ERROR
	}
	log.SetLevel(verbosity)
	log.SetHeader("(${short_file}:${line}) ${time_rfc3339} ${level}: ")

	// Credentials are issued locally from the deployment's key pair
	issuer := credentials.NewIssuer(lkAPIKey, lkAPISecret)

	// Agent control client
	agentClient := agent.NewClient(agent.Config{
		BaseURL:            agentBaseURL,
		AppID:              lkAPIKey,
		CustomerID:         agentCustomerID,
		CustomerSecret:     agentCustomerSecret,
		LLMURL:             llmURL,
		LLMKey:             llmKey,
		LLMModel:           llmModel,
		BasePrompt:         os.Getenv("BASE_PROMPT"),
		ASRLanguage:        os.Getenv("ASR_LANGUAGE"),
		MicrosoftTTSKey:    os.Getenv("MICROSOFT_TTS_KEY"),
		MicrosoftTTSRegion: os.Getenv("MICROSOFT_TTS_REGION"),
		ElevenLabsKey:      os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsModel:    os.Getenv("ELEVENLABS_MODEL"),
	})

	// Playback goes through the autoplay gate so a blocked device surfaces
	// as a retryable state instead of an error
	gate := media.NewGate(true)
	newMedia := func() *media.Controller {
		player := media.NewGatedPlayer(media.NewDevicePlayer(), gate)
		return media.NewController(player, media.NewDeviceSource(), media.PCM16Decoder{}, media.PCM16Encoder{})
	}

	// Initialise session service
	service := session.NewService(session.ServiceConfig{
		URL:          lkURL,
		MessagingURL: os.Getenv("MESSAGING_URL"),
	}, issuer, agentClient, issuer.BuildAgentToken, newMedia)

	// Create S3 transcript exporter only if the environment variables are not empty
	s3Region := os.Getenv("S3_REGION")
	s3Bucket := os.Getenv("S3_BUCKET")
	if s3Region != "" && s3Bucket != "" {
		s3Directory := os.Getenv("S3_DIRECTORY")
		if s3Directory == "" {
			s3Directory = "transcripts"
		}
		uploader, err := export.NewS3Uploader(export.S3Config{
			Region:    s3Region,
			Bucket:    s3Bucket,
			Directory: s3Directory,
		})
		if err != nil {
			log.Fatal(err)
		}
		service.SetExporter(export.NewExporter(uploader))
	}

	// Initialise voice controller
	controller := rest.NewVoiceController(service, issuer)

	// Initialise server
	e := echo.New()

	// Attach middlewares
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "(${host}) ${time_rfc3339} ${level}: ${method} ${uri} ${status} ${error}\n",
	}))

	// Attach handlers
	e.GET("/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Attach voice handlers
	e.GET("/voice/token", controller.Token)
	e.POST("/voice/sessions/start", controller.StartSession)
	e.POST("/voice/sessions/stop", controller.StopSession)
	e.GET("/voice/sessions/:channel", controller.GetSession)
	e.POST("/voice/sessions/microphone", controller.SetMicrophone)
	e.POST("/voice/sessions/retry-audio", controller.RetryAudio)
	e.POST("/voice/sessions/export", controller.ExportTranscript)

	// Start server
	e.Logger.Fatal(e.Start(":" + port))
}
