package phoneintel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nyaruka/phonenumbers"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/whatsapp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		region   string
		wantE164 string
		wantAuto bool
		wantErr  bool
	}{
		{name: "international", phone: "+1 650-253-0000", wantE164: "+16502530000", wantAuto: true},
		{name: "national with region", phone: "(650) 253-0000", region: "us", wantE164: "+16502530000"},
		{name: "bare digits fall back to common regions", phone: "16502530000", wantE164: "+16502530000", wantAuto: true},
		{name: "too short", phone: "123", wantErr: true},
		{name: "garbage", phone: "not a phone", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			num, auto, err := Parse(tt.phone, tt.region)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Errorf("Parse err = %v, want ErrUnparseable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := e164(num); got != tt.wantE164 {
				t.Errorf("E164 = %q, want %q", got, tt.wantE164)
			}
			if auto != tt.wantAuto {
				t.Errorf("autoDetected = %v, want %v", auto, tt.wantAuto)
			}
		})
	}
}

func e164(n *phonenumbers.PhoneNumber) string {
	return phonenumbers.Format(n, phonenumbers.E164)
}

func TestReputation(t *testing.T) {
	tests := []struct {
		name     string
		valid    bool
		lineType string
		carrier  string
		location string
		want     float64
	}{
		{name: "invalid", want: 0},
		{name: "mobile with everything", valid: true, lineType: "mobile", carrier: "T-Mobile", location: "CA", want: 100},
		{name: "voip without carrier", valid: true, lineType: "voip", location: "CA", want: 65},
		{name: "unknown bare", valid: true, lineType: "unknown", want: 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reputation(tt.valid, tt.lineType, tt.carrier, tt.location); got != tt.want {
				t.Errorf("Reputation = %v, want %v", got, tt.want)
			}
		})
	}
}

func newEnrichmentServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wa/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "<html>Chat on WhatsApp</html>")
	})
	mux.HandleFunc("/tg/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `<div class="tgme_page_title"><span>Jane</span></div>`)
	})
	mux.HandleFunc("/nl/validate/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("apikey") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"valid":true,"name":" Jane Roe "}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	httpcache.SetDomainDelay(u.Host, 0)
	return srv
}

func TestInvestigate(t *testing.T) {
	var calls atomic.Int32
	srv := newEnrichmentServer(t, &calls)
	c := New(
		WithWhatsApp(whatsapp.New(whatsapp.WithBaseURL(srv.URL+"/wa"))),
		WithTelegramBaseURL(srv.URL+"/tg"),
		WithNumLookupKey("k"),
		WithNumLookupBaseURL(srv.URL+"/nl"),
	)

	got, err := c.Investigate(context.Background(), "650-253-0000", "US")
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}
	if !got.Valid || got.CountryCode != 1 || got.RegionCode != "US" {
		t.Errorf("result = %+v", got)
	}
	if got.FormattedE164 != "+16502530000" || got.FormattedNational != "(650) 253-0000" {
		t.Errorf("formats = %q / %q", got.FormattedE164, got.FormattedNational)
	}
	if got.AssociatedName != "Jane Roe" {
		t.Errorf("AssociatedName = %q, want %q", got.AssociatedName, "Jane Roe")
	}
	if diff := cmp.Diff([]string{"whatsapp", "telegram"}, got.Metadata.SocialPlatforms); diff != "" {
		t.Errorf("social platforms mismatch (-want +got):\n%s", diff)
	}
	wantLinks := map[string]string{
		"whatsapp": "https://wa.me/16502530000",
		"telegram": "https://t.me/+16502530000",
	}
	if diff := cmp.Diff(wantLinks, got.Metadata.SocialLinks); diff != "" {
		t.Errorf("social links mismatch (-want +got):\n%s", diff)
	}
	if got.Metadata.AutoDetectedRegion {
		t.Error("AutoDetectedRegion = true for an explicit region")
	}
	if got.ReputationScore <= 0 || got.ReputationScore > 100 {
		t.Errorf("ReputationScore = %v, want in (0,100]", got.ReputationScore)
	}
}

func TestInvestigateInvalidMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	srv := newEnrichmentServer(t, &calls)
	c := New(
		WithWhatsApp(whatsapp.New(whatsapp.WithBaseURL(srv.URL+"/wa"))),
		WithTelegramBaseURL(srv.URL+"/tg"),
	)

	got, err := c.Investigate(context.Background(), "123", "")
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}
	if got.Valid || got.LineType != "unknown" || got.ReputationScore != 0 {
		t.Errorf("result = %+v, want invalid", got)
	}
	if got.FormattedE164 != "123" {
		t.Errorf("FormattedE164 = %q, want the raw input", got.FormattedE164)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("made %d enrichment calls for an invalid number", n)
	}
}

func TestInvestigateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Investigate(ctx, "+16502530000", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
