package internal

import (
	"regexp"
	"strings"
)

// VideoKind classifies a video url by hosting provider so the UI can
// label it, and so unsupported urls fail softly before broadcast.
type VideoKind string

const (
	VideoYouTube     VideoKind = "youtube"
	VideoRuTube      VideoKind = "rutube"
	VideoVK          VideoKind = "vkvideo"
	VideoOK          VideoKind = "ok"
	VideoYandex      VideoKind = "yandex"
	VideoFile        VideoKind = "file"
	VideoUnsupported VideoKind = "unsupported"
)

var fileExtPattern = regexp.MustCompile(`(?i)\.(mp4|webm|ogg)$`)

// ClassifyVideoURL mirrors the provider matching the web player uses.
func ClassifyVideoURL(url string) VideoKind {
	switch {
	case url == "":
		return VideoUnsupported
	case strings.Contains(url, "youtube.com"), strings.Contains(url, "youtu.be"):
		return VideoYouTube
	case strings.Contains(url, "rutube.ru"):
		return VideoRuTube
	case strings.Contains(url, "vkvideo.ru"):
		return VideoVK
	case strings.Contains(url, "ok.ru/video"):
		return VideoOK
	case strings.Contains(url, "yandex.ru/video"):
		return VideoYandex
	case fileExtPattern.MatchString(url):
		return VideoFile
	default:
		return VideoUnsupported
	}
}
