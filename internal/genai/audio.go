package genai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultAudioMimeType is assumed when a payload does not name a supported type.
const DefaultAudioMimeType = "audio/webm"

var supportedAudioTypes = []string{"audio/webm", "audio/mp4", "audio/ogg", "audio/wav", "audio/mpeg"}

// DecodeAudio accepts a base64 data URL ("data:audio/webm;codecs=opus;base64,...")
// or bare base64 and returns the raw bytes with their mime type.
func DecodeAudio(payload string) (Audio, error) {
	payload = strings.TrimSpace(payload)
	mime := DefaultAudioMimeType

	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return Audio{}, fmt.Errorf("audio data URL has no payload")
		}
		params := strings.Split(header, ";")
		if !hasParam(params[1:], "base64") {
			return Audio{}, fmt.Errorf("audio data URL is not base64 encoded")
		}
		mime = sniffAudioType(params[0])
		payload = data
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return Audio{}, fmt.Errorf("audio payload is not valid base64: %w", err)
	}
	if len(raw) == 0 {
		return Audio{}, fmt.Errorf("audio payload is empty")
	}
	return Audio{MimeType: mime, Data: raw}, nil
}

func sniffAudioType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, t := range supportedAudioTypes {
		if mediaType == t {
			return t
		}
	}
	return DefaultAudioMimeType
}

func hasParam(params []string, want string) bool {
	for _, p := range params {
		if strings.EqualFold(strings.TrimSpace(p), want) {
			return true
		}
	}
	return false
}

// decodeBase64 accepts padded or unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
