package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dossier/pkg/smart"
)

func sampleResult() *smart.Result {
	return &smart.Result{
		Input: smart.Input{Text: "jdoe"},
		Candidates: []*smart.Candidate{
			{Identifier: "jdoe@example.com", Type: smart.TypeEmail, Confidence: 0.95, Reason: "Valid email, Gravatar profile"},
			{Identifier: "jdoe", Type: smart.TypeUsername, Confidence: 2.0 / 3, Reason: "Found on 3 platforms, incl. github"},
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleResult()); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	want := "identifier,type,confidence,reason\n" +
		"jdoe@example.com,email,0.9500,\"Valid email, Gravatar profile\"\n" +
		"jdoe,username,0.6667,\"Found on 3 platforms, incl. github\"\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVNoCandidates(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, &smart.Result{}); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if got := buf.String(); got != "identifier,type,confidence,reason\n" {
		t.Errorf("CSV = %q, want header only", got)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleResult()); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded struct {
		Candidates []struct {
			Identifier string  `json:"identifier"`
			Type       string  `json:"identifier_type"`
			Confidence float64 `json:"confidence"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Candidates) != 2 || decoded.Candidates[0].Type != "email" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  \"input\"")) {
		t.Error("output is not indented")
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		format  Format
		wantErr bool
	}{
		{format: FormatJSON},
		{format: FormatCSV},
		{format: ""},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, tt.format, sampleResult())
			if (err != nil) != tt.wantErr {
				t.Errorf("Write err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
