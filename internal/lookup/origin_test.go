package lookup

import "testing"

func TestResolveOrigin(t *testing.T) {
	tests := []struct {
		name string
		in   OriginInput
		want string
	}{
		{
			name: "origin wins over everything",
			in: OriginInput{
				Origin:       "https://a.com",
				Referer:      "https://r.com/page",
				HeaderDomain: "h.com",
				ParamDomain:  "b.com",
				ClientIP:     "10.0.0.1:5555",
			},
			want: "a.com",
		},
		{
			name: "referer when no origin",
			in:   OriginInput{Referer: "https://shop.example.com/checkout?x=1", ParamDomain: "b.com"},
			want: "shop.example.com",
		},
		{
			name: "header before param",
			in:   OriginInput{HeaderDomain: "h.com", ParamDomain: "b.com"},
			want: "h.com",
		},
		{
			name: "param",
			in:   OriginInput{ParamDomain: "b.com", ClientIP: "10.0.0.1"},
			want: "b.com",
		},
		{
			name: "client ip with port",
			in:   OriginInput{ClientIP: "192.0.2.10:43210"},
			want: "192.0.2.10",
		},
		{
			name: "client ip without port",
			in:   OriginInput{ClientIP: "192.0.2.10"},
			want: "192.0.2.10",
		},
		{
			name: "ipv6 client",
			in:   OriginInput{ClientIP: "[2001:db8::1]:8080"},
			want: "2001:db8::1",
		},
		{
			name: "lowercase, port and www stripped",
			in:   OriginInput{Origin: "HTTPS://WWW.Example.COM:8443"},
			want: "example.com",
		},
		{
			name: "bare host param with www",
			in:   OriginInput{ParamDomain: "www.loja.com.br"},
			want: "loja.com.br",
		},
		{
			name: "null origin falls through",
			in:   OriginInput{Origin: "null", Referer: "https://r.com/"},
			want: "r.com",
		},
		{
			name: "whitespace ignored",
			in:   OriginInput{Origin: "   ", HeaderDomain: " h.com "},
			want: "h.com",
		},
		{
			name: "nothing at all",
			in:   OriginInput{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveOrigin(tt.in); got != tt.want {
				t.Errorf("ResolveOrigin() = %q, want %q", got, tt.want)
			}
		})
	}
}
