package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/lithammer/shortuuid/v4"
)

var (
	ErrInvite = errors.New("agent invite failed")
	ErrStop   = errors.New("agent stop failed")
)

// The agent joins the channel under a fixed, well-known uid so the session
// manager can recognise it among remote participants.
const AgentUID = "999"

const (
	defaultTTSVendor = "microsoft"
	defaultVoice     = "en-US-AndrewMultilingualNeural"
	idleTimeoutSec   = 600

	// Larger contexts make the invite request flaky; the agent can be asked
	// for specifics instead.
	maxKnowledgeContext = 10000
)

type VoiceConfig struct {
	Vendor string `json:"vendor"`
	Voice  string `json:"voice,omitempty"`
}

type InviteRequest struct {
	Channel    string
	AgentToken string

	// KnowledgeRef identifies the video whose material grounds the agent's
	// answers. Passed through untouched.
	KnowledgeRef string

	// KnowledgeContext is the pre-retrieved transcript material, if any.
	KnowledgeContext string

	Voice VoiceConfig
}

// Client performs the remote agent control calls.
type Client interface {
	Invite(ctx context.Context, req InviteRequest) (string, error)
	Stop(ctx context.Context, agentID string) error
}

// Config carries the agent control service endpoint plus the provider
// settings forwarded in the invite body.
type Config struct {
	BaseURL        string
	AppID          string
	CustomerID     string
	CustomerSecret string

	LLMURL      string
	LLMKey      string
	LLMModel    string
	BasePrompt  string
	ASRLanguage string

	MicrosoftTTSKey    string
	MicrosoftTTSRegion string
	ElevenLabsKey      string
	ElevenLabsModel    string
}

type httpClient struct {
	config Config
	client *http.Client
}

func NewClient(config Config) Client {
	return &httpClient{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type systemMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ttsConfig struct {
	Vendor string            `json:"vendor"`
	Params map[string]string `json:"params"`
}

type inviteBody struct {
	Name       string           `json:"name"`
	Properties inviteProperties `json:"properties"`
}

type inviteProperties struct {
	Channel        string            `json:"channel"`
	Token          string            `json:"token"`
	AgentRTCUID    string            `json:"agent_rtc_uid"`
	RemoteRTCUIDs  []string          `json:"remote_rtc_uids"`
	IdleTimeout    int               `json:"idle_timeout"`
	ASR            map[string]string `json:"asr"`
	LLM            llmConfig         `json:"llm"`
	TTS            ttsConfig         `json:"tts"`
	KnowledgeRef   string            `json:"knowledge_ref,omitempty"`
	DataChannel    string            `json:"data_channel"`
	EnableMetrics  bool              `json:"enable_metrics"`
	EnableErrorMsg bool              `json:"enable_error_messages"`
}

type llmConfig struct {
	URL            string          `json:"url"`
	APIKey         string          `json:"api_key"`
	SystemMessages []systemMessage `json:"system_messages"`
	Params         map[string]interface{} `json:"params"`
}

type inviteResponse struct {
	AgentID string `json:"agent_id"`
}

func (c *httpClient) Invite(ctx context.Context, req InviteRequest) (string, error) {
	name := "agent_" + strings.ToLower(shortuuid.New()[:8])
	body := inviteBody{
		Name: name,
		Properties: inviteProperties{
			Channel:       req.Channel,
			Token:         req.AgentToken,
			AgentRTCUID:   AgentUID,
			RemoteRTCUIDs: []string{"*"},
			IdleTimeout:   idleTimeoutSec,
			ASR:           map[string]string{"language": c.asrLanguage()},
			LLM: llmConfig{
				URL:            c.config.LLMURL,
				APIKey:         c.config.LLMKey,
				SystemMessages: c.systemMessages(req),
				Params:         map[string]interface{}{"model": c.config.LLMModel},
			},
			TTS:            c.ttsConfig(req.Voice),
			KnowledgeRef:   req.KnowledgeRef,
			DataChannel:    "messaging",
			EnableMetrics:  true,
			EnableErrorMsg: true,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvite, err)
	}

	url := fmt.Sprintf("%s/%s/join", c.config.BaseURL, c.config.AppID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvite, err)
	}
	httpReq.SetBasicAuth(c.config.CustomerID, c.config.CustomerSecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvite, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrInvite, resp.StatusCode)
	}

	var parsed inviteResponse
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.AgentID == "" {
		// Some deployments omit the ID from the ack; the generated name is
		// the addressable fallback
		log.Debugf("invite ack without agent ID, using generated name | name: %s", name)
		return name, nil
	}
	return parsed.AgentID, nil
}

func (c *httpClient) Stop(ctx context.Context, agentID string) error {
	url := fmt.Sprintf("%s/%s/agents/%s/leave", c.config.BaseURL, c.config.AppID, agentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStop, err)
	}
	httpReq.SetBasicAuth(c.config.CustomerID, c.config.CustomerSecret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStop, err)
	}
	defer resp.Body.Close()

	// 404 means the agent already left the channel
	if resp.StatusCode == http.StatusNotFound {
		log.Infof("agent already left | agent: %s", agentID)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrStop, resp.StatusCode)
	}
	return nil
}

func (c *httpClient) asrLanguage() string {
	if c.config.ASRLanguage == "" {
		return "en-US"
	}
	return c.config.ASRLanguage
}

func (c *httpClient) systemMessages(req InviteRequest) []systemMessage {
	messages := []systemMessage{{Role: "system", Content: c.config.BasePrompt}}
	if req.KnowledgeContext == "" {
		return messages
	}
	knowledge := req.KnowledgeContext
	if len(knowledge) > maxKnowledgeContext {
		log.Warnf("truncating knowledge context | length: %d, limit: %d", len(knowledge), maxKnowledgeContext)
		knowledge = knowledge[:maxKnowledgeContext] + "..."
	}
	return append(messages, systemMessage{Role: "system", Content: knowledge})
}

func (c *httpClient) ttsConfig(voice VoiceConfig) ttsConfig {
	if strings.EqualFold(voice.Vendor, "elevenlabs") {
		return ttsConfig{
			Vendor: "elevenlabs",
			Params: map[string]string{
				"key":      c.config.ElevenLabsKey,
				"voice_id": voice.Voice,
				"model_id": c.config.ElevenLabsModel,
			},
		}
	}
	name := voice.Voice
	if name == "" {
		name = defaultVoice
	}
	return ttsConfig{
		Vendor: defaultTTSVendor,
		Params: map[string]string{
			"key":        c.config.MicrosoftTTSKey,
			"region":     c.config.MicrosoftTTSRegion,
			"voice_name": name,
		},
	}
}
