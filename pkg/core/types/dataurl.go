package types

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ParseDataURL decodes a "data:<mime>;base64,<payload>" URL into an Image.
func ParseDataURL(raw string) (*Image, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return nil, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(raw[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL payload: %w", err)
	}
	img := &Image{Data: data, MIMEType: strings.TrimSpace(mimeType)}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// DataURL encodes the image as a base64 data URL.
func (img Image) DataURL() string {
	if len(img.Data) == 0 {
		return ""
	}
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
