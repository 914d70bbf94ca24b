package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/schema"
)

// Registry holds the known support clients and their ERP assignment, loaded
// from the consultant-maintained CSV export. Lookups are keyed by the
// lowercased client name; Names preserves file order so fuzzy-match ties
// resolve deterministically.
type Registry struct {
	clients map[string]*Client
	names   []string
}

// Client is one registry row after merging duplicates.
type Client struct {
	Name       string
	Consultant string
	Status     string
	JiraKey    string
	ZendeskID  string
	Confluence string
	ERP        string
}

// LoadError reports a registry file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("registry: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads the registry CSV. The file uses ';' as delimiter with a header
// row (Client;Consultant;Statut;JIRA;ZENDESK;CONFLUENCE;ERP) and may start
// with a UTF-8 BOM. Duplicate client rows merge field by field, first
// non-empty value wins.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	reg, err := parse(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	logger.Infof("registry: loaded %d clients from %s", len(reg.names), path)
	return reg, nil
}

// Parse reads registry rows from any reader, same format as Load.
func Parse(r io.Reader) (*Registry, error) {
	return parse(r)
}

func parse(r io.Reader) (*Registry, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"client", "erp"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	reg := &Registry{clients: map[string]*Client{}}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		name := field("client")
		if name == "" {
			continue
		}
		row := &Client{
			Name:       name,
			Consultant: field("consultant"),
			Status:     field("statut"),
			JiraKey:    field("jira"),
			ZendeskID:  field("zendesk"),
			Confluence: field("confluence"),
			ERP:        normalizeERP(field("erp")),
		}
		key := strings.ToLower(name)
		if existing, ok := reg.clients[key]; ok {
			merge(existing, row)
			continue
		}
		reg.clients[key] = row
		reg.names = append(reg.names, name)
	}
	return reg, nil
}

// merge fills empty fields of dst from src. Earlier rows win.
func merge(dst, src *Client) {
	if dst.Consultant == "" {
		dst.Consultant = src.Consultant
	}
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if dst.JiraKey == "" {
		dst.JiraKey = src.JiraKey
	}
	if dst.ZendeskID == "" {
		dst.ZendeskID = src.ZendeskID
	}
	if dst.Confluence == "" {
		dst.Confluence = src.Confluence
	}
	if dst.ERP == "" {
		dst.ERP = src.ERP
	}
}

// normalizeERP maps free-form ERP spellings from the CSV onto the closed set.
func normalizeERP(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sap", "sap b1", "sap business one":
		return schema.ERPSAP
	case "netsuite", "net suite", "oracle netsuite":
		return schema.ERPNetSuite
	}
	return ""
}

// Lookup returns the client for an exact (case-insensitive) name.
func (r *Registry) Lookup(name string) (*Client, bool) {
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ERPFor returns the ERP assigned to a client, empty when the client is
// unknown or has no ERP on file.
func (r *Registry) ERPFor(name string) string {
	if c, ok := r.Lookup(name); ok {
		return c.ERP
	}
	return ""
}

// Names returns the client names in file order.
func (r *Registry) Names() []string {
	return r.names
}

// Len returns the number of distinct clients.
func (r *Registry) Len() int {
	return len(r.clients)
}
