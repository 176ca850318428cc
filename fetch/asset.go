// Package fetch downloads the prebuilt native library release and unpacks the
// static libraries and debug symbols it contains.
//
// The flow mirrors the release layout published on GitHub:
//
//	asset := fetch.ReleaseAsset{Host: "github.com", Owner: "wuurrd",
//	    Repo: "webrtc-audio-processing", Tag: "v0.1.0", Name: "webrtc-Windows.zip"}
//	files, err := fetch.New().FetchAndExtract(ctx, asset, libDir)
//
// Downloads are single attempts and are not checksummed.
package fetch

import (
	"fmt"
	"strings"

	"github.com/accessful-ai/webrtc-audio-processing/config"
)

// ReleaseAsset identifies one file attached to a tagged release.
type ReleaseAsset struct {
	// Host is a bare host name ("github.com") or a base URL with scheme
	// ("http://127.0.0.1:8080") for mirrors.
	Host  string
	Owner string
	Repo  string
	Tag   string
	Name  string
}

// AssetFromRelease builds the asset described by the release configuration.
func AssetFromRelease(r config.Release) ReleaseAsset {
	return ReleaseAsset{
		Host:  r.Host,
		Owner: r.Owner,
		Repo:  r.Repo,
		Tag:   r.Tag,
		Name:  r.Asset,
	}
}

// URL returns the download location of the asset.
func (a ReleaseAsset) URL() string {
	base := strings.TrimSuffix(a.Host, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", base, a.Owner, a.Repo, a.Tag, a.Name)
}
