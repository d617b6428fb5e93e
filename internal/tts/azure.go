// Package tts synthesizes prompt audio from text.
package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/promptstudio/promptstudio/internal/failure"
)

// OutputFormat is the audio format requested from the speech service:
// 16 kHz 16-bit mono PCM in a RIFF/WAVE container.
const OutputFormat = "riff-16khz-16bit-mono-pcm"

// maxAudioBytes bounds the synthesized audio read into memory.
const maxAudioBytes = 32 << 20

// Voices lists the neural voices offered in the studio.
var Voices = []string{
	"de-DE-ConradNeural",
	"de-DE-KatjaNeural",
	"en-GB-RyanNeural",
	"en-GB-SoniaNeural",
	"en-US-GuyNeural",
	"en-US-JennyNeural",
	"fr-FR-DeniseNeural",
	"fr-FR-HenriNeural",
}

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// AzureClient calls the Azure Speech text-to-speech REST endpoint.
type AzureClient struct {
	httpClient *http.Client
	key        string
	region     string
	baseURL    string
}

// NewAzureClient creates a speech client for region. baseURL overrides the
// regional endpoint when non-empty.
func NewAzureClient(httpClient *http.Client, key, region, baseURL string) *AzureClient {
	if baseURL == "" && region != "" {
		baseURL = fmt.Sprintf("https://%s.tts.speech.microsoft.com", region)
	}
	return &AzureClient{
		httpClient: httpClient,
		key:        key,
		region:     region,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Configured returns true if the client has a subscription key and region.
func (c *AzureClient) Configured() bool {
	return c.key != "" && c.region != ""
}

// Synthesize renders text with voice and returns the WAV bytes.
func (c *AzureClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if !c.Configured() {
		return nil, failure.New(failure.SynthesisFailed, "Azure Speech credentials are not configured.")
	}

	body, err := ssml(text, voice)
	if err != nil {
		return nil, fmt.Errorf("tts: building ssml: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cognitiveservices/v1", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("X-Microsoft-OutputFormat", OutputFormat)
	req.Header.Set("User-Agent", "promptstudio")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, failure.Wrap(err, failure.SynthesisFailed, "Speech synthesis failed: service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := fmt.Sprintf("Speech synthesis canceled: status %d", resp.StatusCode)
		if s := strings.TrimSpace(string(msg)); s != "" {
			detail += " - " + s
		}
		return nil, failure.New(failure.SynthesisFailed, detail)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, failure.Wrap(err, failure.SynthesisFailed, "Speech synthesis failed: incomplete audio")
	}
	if len(audio) == 0 {
		return nil, failure.New(failure.SynthesisFailed, "TTS Generation failed")
	}

	slog.Debug("speech synthesized", "voice", voice, "bytes", len(audio))
	return audio, nil
}

// ssml builds the synthesis document. The voice locale is derived from the
// voice name ("en-US-JennyNeural" speaks "en-US").
func ssml(text, voice string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s">`, voiceLocale(voice))
	buf.WriteString(`<voice name="`)
	if err := xml.EscapeText(&buf, []byte(voice)); err != nil {
		return nil, err
	}
	buf.WriteString(`">`)
	if err := xml.EscapeText(&buf, []byte(text)); err != nil {
		return nil, err
	}
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes(), nil
}

func voiceLocale(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
