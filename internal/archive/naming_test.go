package archive

import "testing"

func TestName(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"/etc/pihole", "etc__pihole.tar.gz"},
		{"/home/u/data", "home__u__data.tar.gz"},
		{"/etc/dnsmasq.d", "etc__dnsmasq.d.tar.gz"},
	}
	for _, c := range cases {
		if got := Name(c.src); got != c.want {
			t.Fatalf("Name(%s) = %s, want %s", c.src, got, c.want)
		}
	}
}

func TestNameDeterministic(t *testing.T) {
	if Name("/etc/pihole") != Name("/etc/pihole") {
		t.Fatalf("expected identical names for identical inputs")
	}
}

func TestNameInjectiveOnAllowedPaths(t *testing.T) {
	paths := []string{"/etc/pihole", "/etc/dnsmasq.d", "/etc/caddy", "/etc/caddy_config", "/home/u/data"}
	seen := map[string]string{}
	for _, p := range paths {
		n := Name(p)
		if prev, ok := seen[n]; ok {
			t.Fatalf("collision: %s and %s both map to %s", prev, p, n)
		}
		seen[n] = p
	}
}
