package tunnel

import (
	"strings"
	"testing"
)

func TestURLPattern(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{
			line: "2026-08-29T10:00:00Z INF +  https://witty-otter-maps.trycloudflare.com  +",
			want: "https://witty-otter-maps.trycloudflare.com",
		},
		{
			line: "INF Requesting new quick Tunnel on trycloudflare.com...",
			want: "",
		},
		{
			line: "visit https://evil.example.com/trycloudflare.com now",
			want: "",
		},
	}

	for _, tc := range cases {
		if got := urlPattern.FindString(tc.line); got != tc.want {
			t.Errorf("FindString(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestScanForURL(t *testing.T) {
	output := strings.Join([]string{
		"INF Thank you for trying Cloudflare Tunnel.",
		"INF +--------------------------------------+",
		"INF |  https://first-found-url.trycloudflare.com  |",
		"INF |  https://second-ignored.trycloudflare.com  |",
	}, "\n")

	ch := make(chan string, 1)
	scanForURL(strings.NewReader(output), ch)

	select {
	case url := <-ch:
		if url != "https://first-found-url.trycloudflare.com" {
			t.Fatalf("url = %q", url)
		}
	default:
		t.Fatal("no URL found in output")
	}
}
