package registry

import (
	"strings"
	"testing"

	"github.com/it-spirit/spiritsearch/schema"
)

const sampleCSV = "\xef\xbb\xbf" + `Client;Consultant;Statut;JIRA;ZENDESK;CONFLUENCE;ERP
Acme Corp;Alice;Actif;ACME;12345;ACME-SPACE;SAP
Globex;Bob;Actif;GLX;;GLX-SPACE;NetSuite
Acme Corp;Carol;;;99999;;NetSuite
Initech;;Inactif;INI;;;
`

func mustParse(t *testing.T, data string) *Registry {
	t.Helper()
	reg, err := parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return reg
}

func TestParseBasic(t *testing.T) {
	reg := mustParse(t, sampleCSV)
	if reg.Len() != 3 {
		t.Fatalf("expected 3 clients, got %d", reg.Len())
	}
	c, ok := reg.Lookup("acme corp")
	if !ok {
		t.Fatal("expected acme corp to resolve case-insensitively")
	}
	if c.ERP != schema.ERPSAP {
		t.Errorf("expected SAP, got %q", c.ERP)
	}
}

func TestDuplicateMergeFirstNonEmptyWins(t *testing.T) {
	reg := mustParse(t, sampleCSV)
	c, _ := reg.Lookup("Acme Corp")
	if c.Consultant != "Alice" {
		t.Errorf("first consultant should win, got %q", c.Consultant)
	}
	if c.ZendeskID != "12345" {
		t.Errorf("first zendesk id should win, got %q", c.ZendeskID)
	}
	// first row already set SAP; the duplicate's NetSuite must not override
	if c.ERP != schema.ERPSAP {
		t.Errorf("first ERP should win, got %q", c.ERP)
	}
}

func TestNamesPreserveFileOrder(t *testing.T) {
	reg := mustParse(t, sampleCSV)
	want := []string{"Acme Corp", "Globex", "Initech"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestERPFor(t *testing.T) {
	reg := mustParse(t, sampleCSV)
	if erp := reg.ERPFor("Globex"); erp != schema.ERPNetSuite {
		t.Errorf("expected NetSuite, got %q", erp)
	}
	if erp := reg.ERPFor("Initech"); erp != "" {
		t.Errorf("expected empty ERP for Initech, got %q", erp)
	}
	if erp := reg.ERPFor("Unknown Co"); erp != "" {
		t.Errorf("expected empty ERP for unknown client, got %q", erp)
	}
}

func TestNormalizeERP(t *testing.T) {
	cases := map[string]string{
		"SAP":             schema.ERPSAP,
		"sap business one": schema.ERPSAP,
		"NetSuite":        schema.ERPNetSuite,
		"Oracle NetSuite": schema.ERPNetSuite,
		"Dynamics":        "",
		"":                "",
	}
	for in, want := range cases {
		if got := normalizeERP(in); got != want {
			t.Errorf("normalizeERP(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMissingRequiredColumn(t *testing.T) {
	_, err := parse(strings.NewReader("Client;Consultant\nAcme;Alice\n"))
	if err == nil {
		t.Fatal("expected error for missing ERP column")
	}
}
