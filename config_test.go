package lnurlpay

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func TestNewServiceConfig(t *testing.T) {
	pubKey, err := nostr.GetPublicKey(nostr.GeneratePrivateKey())
	require.NoError(t, err)

	tests := []struct {
		name         string
		cfg          Config
		wantErr      bool
		wantCallback string
		wantLnurl    string
	}{
		{
			name: "defaults",
			cfg: Config{
				BaseURL:     "http://localhost/",
				Description: "Gimme money!",
			},
			wantCallback: "http://localhost/invoice",
			wantLnurl:    "http://localhost/lnurl",
		},
		{
			name: "base path with slash",
			cfg: Config{
				BaseURL:     "https://example.com/lnurl_api/",
				Description: "d",
				NostrPubKey: pubKey,
			},
			wantCallback: "https://example.com/lnurl_api/invoice",
			wantLnurl:    "https://example.com/lnurl_api/lnurl",
		},
		{
			name: "base path without slash",
			cfg: Config{
				BaseURL:     "https://example.com/lnurl_api",
				Description: "d",
			},
			wantCallback: "https://example.com/invoice",
			wantLnurl:    "https://example.com/lnurl",
		},
		{
			name: "relative url",
			cfg: Config{
				BaseURL:     "/lnurl_api/",
				Description: "d",
			},
			wantErr: true,
		},
		{
			name: "bad scheme",
			cfg: Config{
				BaseURL:     "ftp://example.com/",
				Description: "d",
			},
			wantErr: true,
		},
		{
			name: "empty description",
			cfg: Config{
				BaseURL: "http://localhost/",
			},
			wantErr: true,
		},
		{
			name: "bad nostr key",
			cfg: Config{
				BaseURL:     "http://localhost/",
				Description: "d",
				NostrPubKey: "not a key",
			},
			wantErr: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			cfg, err := NewServiceConfig(&test.cfg)
			if test.wantErr {
				require.Error(t, err)
				require.Equal(t, KindConfiguration, errorKind(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.wantCallback, cfg.CallbackURL())
			require.Equal(t, test.wantLnurl, cfg.EndpointURL("lnurl"))
			require.Equal(t, test.cfg.Description, cfg.Description())

			key, ok := cfg.NostrPubKey()
			require.Equal(t, test.cfg.NostrPubKey != "", ok)
			require.Equal(t, test.cfg.NostrPubKey, key)
		})
	}
}

func TestEncodeMetadata(t *testing.T) {
	m, err := encodeMetadata("Hello world")
	require.NoError(t, err)
	require.Equal(t, `[["text/plain","Hello world"]]`, m)

	// No HTML escaping and quotes escaped the JSON way.
	m, err = encodeMetadata(`<b>"tips" & thanks</b>`)
	require.NoError(t, err)
	require.Equal(
		t, `[["text/plain","<b>\"tips\" & thanks</b>"]]`, m,
	)
}
