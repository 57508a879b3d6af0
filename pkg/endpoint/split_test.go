package endpoint

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want Parts
	}{
		{"rtmp://push.example.com:1935/live/key", Parts{Scheme: "rtmp", Host: "push.example.com", Port: "1935", Path: "/live/key"}},
		{"srt://1.2.3.4:9000?streamid=abc", Parts{Scheme: "srt", Host: "1.2.3.4", Port: "9000", Path: "?streamid=abc"}},
		{"rtmp://u:p@h/app", Parts{Scheme: "rtmp", Userinfo: "u:p", Host: "h", Path: "/app"}},
		{"udp://[ff02::1]:5000", Parts{Scheme: "udp", Host: "ff02::1", Port: "5000"}},
		{"/just/a/path", Parts{Path: "/just/a/path"}},
	}
	for _, tt := range tests {
		if got := Split(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSplitHostAddr(t *testing.T) {
	got := SplitHostAddr("10.0.0.1:5000/stream")
	want := Parts{Host: "10.0.0.1", Port: "5000", Path: "/stream"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitHostAddr = %+v, want %+v", got, want)
	}

	got = SplitHostAddr("rtmp://h:1935/app")
	if got.Scheme != "rtmp" || got.Host != "h" || got.Port != "1935" {
		t.Fatalf("SplitHostAddr with scheme = %+v", got)
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("rtmp://h:1935/app/key"); err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if _, err := Parse("udp://[::1]junk/x"); err == nil {
		t.Fatalf("Parse: expected error for junk after IPv6 literal")
	}
}

func TestHostLabels(t *testing.T) {
	got := HostLabels("rtmp://Push-B.Example.com:1935/live/key")
	want := []string{"push", "b", "example", "com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HostLabels = %v, want %v", got, want)
	}
	if HostLabels("") != nil {
		t.Fatalf("HostLabels(\"\") should be nil")
	}
}
