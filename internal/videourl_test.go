package internal

import "testing"

func TestClassifyVideoURL(t *testing.T) {
	cases := []struct {
		url  string
		want VideoKind
	}{
		{"https://www.youtube.com/watch?v=abc", VideoYouTube},
		{"https://youtu.be/abc", VideoYouTube},
		{"https://rutube.ru/video/xyz/", VideoRuTube},
		{"https://vkvideo.ru/video-1_2", VideoVK},
		{"https://ok.ru/video/123", VideoOK},
		{"https://yandex.ru/video/preview/456", VideoYandex},
		{"https://cdn.example.com/movie.mp4", VideoFile},
		{"https://cdn.example.com/movie.WEBM", VideoFile},
		{"https://example.com/page.html", VideoUnsupported},
		{"", VideoUnsupported},
	}
	for _, tc := range cases {
		if got := ClassifyVideoURL(tc.url); got != tc.want {
			t.Errorf("ClassifyVideoURL(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}
