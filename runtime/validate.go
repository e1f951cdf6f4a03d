package runtime

import (
	"encoding/base64"
	"net/url"
	"strings"

	"chatwire/domain"
	cherr "chatwire/errors"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit bounds how much of a data URI is decoded for sniffing.
const sniffLimit = 3072

// normalizeBody trims the text body and enforces the body contract:
// exactly one of text and image, text non-blank after trimming, image a
// well-formed reference. Raw image upload is not this channel's job; an
// image body is always a pre-resolved URL or an inline data URI.
func normalizeBody(cmd domain.SendMessageCommand) (domain.SendMessageCommand, error) {
	cmd.Text = strings.TrimSpace(cmd.Text)

	switch {
	case cmd.Text == "" && cmd.Image == "":
		return domain.SendMessageCommand{}, cherr.ErrEmptyBody
	case cmd.Text != "" && cmd.Image != "":
		return domain.SendMessageCommand{}, cherr.ErrAmbiguousBody
	case cmd.Image != "":
		if err := validateImageRef(cmd.Image); err != nil {
			return domain.SendMessageCommand{}, err
		}
	}
	return cmd, nil
}

// validateImageRef accepts either an absolute http(s) URL or a data URI
// whose decoded head actually sniffs as an image.
func validateImageRef(ref string) error {
	if strings.HasPrefix(ref, "data:") {
		return validateDataURI(ref)
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return cherr.ErrBadImageRef
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return cherr.ErrBadImageRef
	}
	return nil
}

func validateDataURI(ref string) error {
	rest, ok := strings.CutPrefix(ref, "data:image/")
	if !ok {
		return cherr.ErrBadImageRef
	}
	_, data, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return cherr.ErrBadImageRef
	}
	if len(data) > sniffLimit {
		data = data[:sniffLimit]
	}

	// The window may cut mid-quantum; keep whatever prefix decoded.
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		decoded, _ = base64.RawStdEncoding.DecodeString(strings.TrimRight(data[:len(data)-len(data)%4], "="))
	}
	if len(decoded) < 8 {
		return cherr.ErrBadImageRef
	}

	if !strings.HasPrefix(mimetype.Detect(decoded).String(), "image/") {
		return cherr.ErrBadImageRef
	}
	return nil
}
