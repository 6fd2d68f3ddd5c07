package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
)

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode body: %w", common.ErrBadRequest)
	}
	return nil
}

// appOrigin is the hostname of the Referer, or of Origin when there is no
// Referer. It is empty when neither parses.
func appOrigin(r *http.Request) string {
	for _, h := range []string{"Referer", "Origin"} {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		u, err := url.Parse(v)
		if err != nil || u.Hostname() == "" {
			continue
		}
		return strings.ToLower(u.Hostname())
	}
	return ""
}

// device prefers the body device and fills its gaps from X-Device-* headers.
func device(r *http.Request, body *models.Device) models.Device {
	var d models.Device
	if body != nil {
		d = *body
	}
	if d.ID == "" {
		d.ID = r.Header.Get(common.DeviceIDHeader)
	}
	if d.Browser == "" {
		d.Browser = r.Header.Get(common.DeviceBrowserHeader)
	}
	if d.Platform == "" {
		d.Platform = r.Header.Get(common.DevicePlatformHeader)
	}
	if !d.IsMobile {
		d.IsMobile, _ = strconv.ParseBool(r.Header.Get(common.DeviceMobileHeader))
	}
	return d
}

// bearer returns the token of an "Authorization: Bearer" header.
func bearer(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
