package ident

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		raw   string
		kind  Kind
		value string
	}{
		{"UCabc123", KindCanonical, "UCabc123"},
		{"@somebot", KindHandle, "somebot"},
		{"somebot", KindHandle, "somebot"},
		{"  UCabc123  ", KindCanonical, "UCabc123"},
		{"@", KindHandle, ""},
	}
	for _, tt := range tests {
		got := Classify(tt.raw)
		if got.Kind != tt.kind || got.Value != tt.value {
			t.Errorf("Classify(%q) = {%v %q}, want {%v %q}", tt.raw, got.Kind, got.Value, tt.kind, tt.value)
		}
	}
}

func TestClassifyRoundTrip(t *testing.T) {
	for _, raw := range []string{"UCabc123", "@somebot", "somebot"} {
		first := Classify(raw)
		second := Classify(first.String())
		if first != second {
			t.Errorf("re-classifying %q: got %+v, want %+v", first.String(), second, first)
		}
	}
}

func TestString(t *testing.T) {
	if got := Canonical("UCabc").String(); got != "UCabc" {
		t.Errorf("canonical String() = %q", got)
	}
	if got := Handle("@somebot").String(); got != "@somebot" {
		t.Errorf("handle String() = %q", got)
	}
}

func TestURL(t *testing.T) {
	if got := Canonical("UCabc").URL("/about"); got != "https://www.youtube.com/channel/UCabc/about" {
		t.Errorf("canonical URL = %q", got)
	}
	if got := Handle("somebot").URL(""); got != "https://www.youtube.com/@somebot" {
		t.Errorf("handle URL = %q", got)
	}
	if got := Handle("somebot").URL("/channels"); got != "https://www.youtube.com/@somebot/channels" {
		t.Errorf("handle channels URL = %q", got)
	}
}

func TestUpgradeAvatarURL(t *testing.T) {
	in := "https://yt3.ggpht.com/xyz=s88-c-k-c0x00ffffff-no-rj"
	want := "https://yt3.ggpht.com/xyz=s800-c-k-c0x00ffffff-no-rj"
	if got := UpgradeAvatarURL(in, 800); got != want {
		t.Errorf("UpgradeAvatarURL = %q, want %q", got, want)
	}
	plain := "https://example.com/avatar.png"
	if got := UpgradeAvatarURL(plain, 800); got != plain {
		t.Errorf("no size component: got %q, want unchanged", got)
	}
	if got := UpgradeAvatarURL("", 800); got != "" {
		t.Errorf("empty input: got %q", got)
	}
}

func TestUnwrapRedirect(t *testing.T) {
	wrapped := "https://www.youtube.com/redirect?event=channel_description&q=https%3A%2F%2Fexample.com%2Fshop"
	if got := UnwrapRedirect(wrapped); got != "https://example.com/shop" {
		t.Errorf("UnwrapRedirect = %q", got)
	}
	direct := "https://example.com/page"
	if got := UnwrapRedirect(direct); got != direct {
		t.Errorf("non-wrapper changed: %q", got)
	}
	noQ := "https://www.youtube.com/redirect?event=x"
	if got := UnwrapRedirect(noQ); got != noQ {
		t.Errorf("wrapper without destination changed: %q", got)
	}
}

func TestFromHref(t *testing.T) {
	tests := []struct {
		href string
		want ChannelIdentifier
		ok   bool
	}{
		{"/@somebot", Handle("somebot"), true},
		{"/@somebot/videos", Handle("somebot"), true},
		{"/channel/UCabc", Canonical("UCabc"), true},
		{"/channel/UCabc/featured", Canonical("UCabc"), true},
		{"/watch?v=xyz", ChannelIdentifier{}, false},
		{"/@", ChannelIdentifier{}, false},
		{"/channel/", ChannelIdentifier{}, false},
		{"", ChannelIdentifier{}, false},
	}
	for _, tt := range tests {
		got, ok := FromHref(tt.href)
		if ok != tt.ok || got != tt.want {
			t.Errorf("FromHref(%q) = (%+v, %v), want (%+v, %v)", tt.href, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.Example.com/shop?x=1", "example.com"},
		{"http://sub.example.org/path", "sub.example.org"},
		{"https://example.com", "example.com"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := NormalizeDomain(tt.in); got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
