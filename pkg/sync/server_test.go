package sync

import "testing"

func TestServerNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Server
		want Server
	}{
		{
			"blank stays blank",
			Server{},
			Server{},
		},
		{
			"whitespace name is blank",
			Server{Name: "  \t"},
			Server{},
		},
		{
			"blank name discards credentials",
			Server{Name: "", Username: "u", Password: "p"},
			Server{},
		},
		{
			"name is trimmed",
			Server{Name: "  /srv/sync  "},
			Server{Name: "/srv/sync"},
		},
		{
			"password without username is discarded",
			Server{Name: "/srv/sync", Password: "p"},
			Server{Name: "/srv/sync"},
		},
		{
			"credentials are kept together",
			Server{Name: "/srv/sync", Username: "u", Password: "p"},
			Server{Name: "/srv/sync", Username: "u", Password: "p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestServerConfigured(t *testing.T) {
	if (Server{}).Configured() {
		t.Error("blank server must not report configured")
	}
	if !(Server{Name: "/srv/sync"}).Configured() {
		t.Error("named server must report configured")
	}
}

func TestServerEqual(t *testing.T) {
	a := Server{Name: " /srv/sync "}
	b := Server{Name: "/srv/sync", Password: "orphaned"}
	if !a.Equal(b) {
		t.Error("expected servers to compare equal after normalization")
	}
	if a.Equal(Server{Name: "/srv/other"}) {
		t.Error("expected different names to compare unequal")
	}
}
