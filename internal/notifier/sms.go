package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const DefaultSolapiURL = "https://api.solapi.com"

// Короткое SMS вмещает 90 байт в EUC-KR, длиннее уходит как LMS
const smsMaxBytes = 90

// SMS отправляет сообщения через Solapi v4
type SMS struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	sender    string
	now       func() time.Time
}

func NewSMS(client *http.Client, baseURL, apiKey, apiSecret, sender string) *SMS {
	if baseURL == "" {
		baseURL = DefaultSolapiURL
	}

	return &SMS{
		client:    client,
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		sender:    sender,
		now:       time.Now,
	}
}

type solapiMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
	Type string `json:"type"`
}

func (s *SMS) Notify(ctx context.Context, destination, message string) error {
	if s.apiKey == "" || s.apiSecret == "" || s.sender == "" || destination == "" {
		return fmt.Errorf("sms: not configured")
	}

	body, err := json.Marshal(map[string][]solapiMessage{
		"messages": {{
			To:   destination,
			From: s.sender,
			Text: message,
			Type: messageType(message),
		}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages/v4/send-many/detail", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.authorization())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("sms: status %d: %s", resp.StatusCode, detail)
	}

	return nil
}

// Подпись HMAC-SHA256 от date+salt ключом apiSecret
func (s *SMS) authorization() string {
	date := s.now().UTC().Format(time.RFC3339)
	salt := uuid.NewString()

	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(date + salt))

	return fmt.Sprintf(
		"HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s",
		s.apiKey, date, salt, hex.EncodeToString(mac.Sum(nil)),
	)
}

// Не-ASCII символ считаем за два байта, как в EUC-KR
func messageType(text string) string {
	size := 0
	for _, r := range text {
		if r < 0x80 {
			size++
		} else {
			size += 2
		}
	}

	if size > smsMaxBytes {
		return "LMS"
	}
	return "SMS"
}
