// Package links derives the public URLs of a stored file.
package links

import (
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/library/config"
)

// Settings holds the link base URLs.
type Settings struct {
	DownloadBase string
	StreamBase   string
	// EmbedBase falls back to StreamBase.
	EmbedBase string
}

// LoadSettingsFromConfig reads settings.links.*.
func LoadSettingsFromConfig() Settings {
	return Settings{
		DownloadBase: config.String("settings.links.download_base", ""),
		StreamBase:   config.String("settings.links.stream_base", ""),
		EmbedBase:    config.String("settings.links.embed_base", ""),
	}
}

// Links are the URLs of one file. Embed is empty for non video content.
type Links struct {
	Direct string `bson:"direct_link" json:"direct_link"`
	Stream string `bson:"stream_link" json:"stream_link"`
	Embed  string `bson:"embed_link,omitempty" json:"embed_link,omitempty"`
}

// HasEmbed reports whether an embed link was issued.
func (l Links) HasEmbed() bool {
	return l.Embed != ""
}

// Issuer builds links from validated base URLs.
type Issuer struct {
	download string
	stream   string
	embed    string
}

// NewIssuer validates settings once.
func NewIssuer(settings Settings) (*Issuer, error) {
	if settings.EmbedBase == "" {
		settings.EmbedBase = settings.StreamBase
	}

	i := new(Issuer)
	var err error
	if i.download, err = normalizeBase("download", settings.DownloadBase); err != nil {
		return nil, err
	}
	if i.stream, err = normalizeBase("stream", settings.StreamBase); err != nil {
		return nil, err
	}
	if i.embed, err = normalizeBase("embed", settings.EmbedBase); err != nil {
		return nil, err
	}

	return i, nil
}

func normalizeBase(name, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.Errorf("%s base url is required", name)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "parse %s base url", name)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Errorf("%s base url %q must be http or https", name, raw)
	}
	if u.Host == "" {
		return "", errors.Errorf("%s base url %q has no host", name, raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", errors.Errorf("%s base url %q must not carry a query or fragment", name, raw)
	}

	return strings.TrimRight(raw, "/"), nil
}

// Issue derives the links of ref. The result only depends on the base URLs
// and the arguments, so re-issuing yields identical strings.
func (i *Issuer) Issue(ref artifact.Reference, name, mime string) (Links, error) {
	if ref.IsZero() {
		return Links{}, errors.WithStack(artifact.ErrInvalidReference)
	}

	id := url.PathEscape(ref.FileID)
	links := Links{
		Direct: i.download + "/file/" + id + "?filename=" + escapeName(name),
		Stream: i.stream + "/stream/" + id,
	}
	if artifact.IsVideoMIME(mime) {
		links.Embed = i.embed + "/embed/" + id
	}

	return links, nil
}

// escapeName percent-encodes name for a query value, spaces become %20.
func escapeName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
