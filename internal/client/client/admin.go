package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/common"
)

// AdminClient calls /nfc-key and /start.
type AdminClient struct {
	baseURL  string
	deviceID string
	http     *http.Client
}

func NewAdminClient(baseURL, adminDeviceID string, timeout time.Duration) *AdminClient {
	return &AdminClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: adminDeviceID,
		http:     &http.Client{Timeout: timeout},
	}
}

// NfcKey asks the server for a fresh physical key and returns the URL to
// write on the NFC tag.
func (c *AdminClient) NfcKey(ctx context.Context) (string, error) {
	var resp struct {
		PhysicalKeyURL string `json:"physical_key_url"`
	}
	req := map[string]string{"admin_device_id": c.deviceID}
	if err := c.post(ctx, "/nfc-key", req, &resp); err != nil {
		return "", err
	}
	if resp.PhysicalKeyURL == "" {
		return "", ErrUnexpected
	}
	return resp.PhysicalKeyURL, nil
}

// Start unlocks the server.
func (c *AdminClient) Start(ctx context.Context, physicalKeyHex string, adminPassword []byte) error {
	var resp struct {
		Success bool `json:"success"`
	}
	req := map[string]string{
		"physical_key_hex": physicalKeyHex,
		"admin_password":   string(adminPassword),
		"admin_device_id":  c.deviceID,
	}
	if err := c.post(ctx, "/start", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrUnexpected
	}
	return nil
}

func (c *AdminClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.DeviceIDHeader, c.deviceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	return nil
}

func mapStatus(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusConflict:
		return common.ErrAlreadyStarted
	case http.StatusServiceUnavailable:
		return common.ErrServiceNotReady
	default:
		return fmt.Errorf("%w: status %d", ErrUnexpected, code)
	}
}
