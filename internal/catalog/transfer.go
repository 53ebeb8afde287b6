package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"github.com/z0nyx/Akidzuki-CLI/internal/database"
	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
	"gopkg.in/yaml.v3"
)

// Transfer formats.
const (
	FormatJSON      = "json"
	FormatYAML      = "yaml"
	FormatSSHConfig = "ssh_config"
)

// FormatFromPath guesses the transfer format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatSSHConfig
	}
}

// record is the exchange shape for JSON and YAML. Timestamps stay strings
// so files written by other tools with naive timestamps still load.
type record struct {
	Name         string `json:"name" yaml:"name"`
	Host         string `json:"host" yaml:"host"`
	HostName     string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Port         int    `json:"port,omitempty" yaml:"port,omitempty"`
	User         string `json:"user,omitempty" yaml:"user,omitempty"`
	IdentityFile string `json:"identity_file,omitempty" yaml:"identity_file,omitempty"`
	Group        string `json:"group,omitempty" yaml:"group,omitempty"`
	Favorite     bool   `json:"favorite,omitempty" yaml:"favorite,omitempty"`
	LastUsed     string `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	CreatedAt    string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func toRecord(p *database.Profile) record {
	r := record{
		Name:         p.Name,
		Host:         p.Host,
		HostName:     p.Address(),
		Port:         p.Port,
		User:         p.User,
		IdentityFile: p.IdentityFile,
		Group:        p.Group,
		Favorite:     p.Favorite,
	}
	if p.LastUsed != nil {
		r.LastUsed = p.LastUsed.Format(time.RFC3339)
	}
	if !p.CreatedAt.IsZero() {
		r.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return r
}

func (r record) profile() (database.Profile, error) {
	if r.Name == "" || r.Host == "" {
		return database.Profile{}, errors.New("record needs name and host")
	}
	p := database.Profile{
		Name:         r.Name,
		Host:         r.Host,
		HostName:     r.HostName,
		Port:         r.Port,
		User:         r.User,
		IdentityFile: r.IdentityFile,
		Group:        r.Group,
		Favorite:     r.Favorite,
	}
	if r.LastUsed != "" {
		t, ok := parseTime(r.LastUsed)
		if !ok {
			return database.Profile{}, fmt.Errorf("bad last_used %q", r.LastUsed)
		}
		p.LastUsed = &t
	}
	if r.CreatedAt != "" {
		t, ok := parseTime(r.CreatedAt)
		if !ok {
			return database.Profile{}, fmt.Errorf("bad created_at %q", r.CreatedAt)
		}
		p.CreatedAt = t
	}
	return p, nil
}

// Export writes every profile to w in the given format. Secrets are never
// exported.
func (c *Catalog) Export(w io.Writer, format string) error {
	profiles, err := c.List(Filter{SortBy: SortByName})
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		records := make([]record, 0, len(profiles))
		for i := range profiles {
			records = append(records, toRecord(&profiles[i]))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case FormatYAML:
		records := make([]record, 0, len(profiles))
		for i := range profiles {
			records = append(records, toRecord(&profiles[i]))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	case FormatSSHConfig:
		blocks := make([]string, 0, len(profiles))
		for i := range profiles {
			blocks = append(blocks, strings.TrimSpace(formatHostBlock(&profiles[i])))
		}
		if _, err := io.WriteString(w, strings.Join(blocks, "\n\n")+"\n"); err != nil {
			return fmt.Errorf("write ssh_config: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	log.Printf("[catalog] exported %d profiles as %s", len(profiles), format)
	return nil
}

// Import reads profiles from r. Profiles whose name already exists, or that
// fail validation, are skipped; a malformed document is an error.
func (c *Catalog) Import(r io.Reader, format string) (imported, skipped int, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, 0, fmt.Errorf("read import: %w", err)
	}

	var profiles []database.Profile
	switch format {
	case FormatJSON, FormatYAML:
		var records []record
		if format == FormatJSON {
			err = json.Unmarshal(jsonc.ToJSON(data), &records)
		} else {
			err = yaml.Unmarshal(data, &records)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("parse %s import: %w", format, err)
		}
		for _, rec := range records {
			p, err := rec.profile()
			if err != nil {
				log.Printf("[catalog] WARNING: skipping import record %s: %v", logutil.SanitizeForLog(rec.Name), err)
				skipped++
				continue
			}
			profiles = append(profiles, p)
		}
	case FormatSSHConfig:
		for _, block := range SplitSSHConfigBlocks(string(data)) {
			if p, ok := ParseSSHConfigBlock(block); ok {
				profiles = append(profiles, p)
			}
		}
	default:
		return 0, 0, fmt.Errorf("unknown import format %q", format)
	}

	for i := range profiles {
		if err := c.Add(&profiles[i]); err != nil {
			if !errors.Is(err, ErrExists) {
				log.Printf("[catalog] WARNING: skipping import of %s: %v", logutil.SanitizeForLog(profiles[i].Name), err)
			}
			skipped++
			continue
		}
		imported++
	}
	log.Printf("[catalog] imported %d profiles, skipped %d", imported, skipped)
	return imported, skipped, nil
}
