package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/z0nyx/Akidzuki-CLI/internal/database"
)

// Accepted timestamp layouts for LastUsed/CreatedAt comments. Older files
// carry naive local timestamps with microseconds.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatHostBlock renders p as one ssh_config Host block.
func formatHostBlock(p *database.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", p.Name)
	fmt.Fprintf(&b, "  HostName %s\n", p.Address())
	fmt.Fprintf(&b, "  User %s\n", p.User)
	if p.Port != 22 && p.Port != 0 {
		fmt.Fprintf(&b, "  Port %d\n", p.Port)
	}
	if p.IdentityFile != "" {
		fmt.Fprintf(&b, "  IdentityFile %s\n", p.IdentityFile)
	}
	if p.Group != "" {
		fmt.Fprintf(&b, "  # Group: %s\n", p.Group)
	}
	if p.Favorite {
		b.WriteString("  # Favorite: true\n")
	}
	if p.LastUsed != nil {
		fmt.Fprintf(&b, "  # LastUsed: %s\n", p.LastUsed.Format(time.RFC3339))
	}
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "  # CreatedAt: %s\n", p.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}

// ParseSSHConfigBlock parses one Host block. ok is false when the block
// has no Host or HostName line.
func ParseSSHConfigBlock(block string) (p database.Profile, ok bool) {
	p.Port = 22
	var hostName string

	for _, raw := range strings.Split(block, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseMetaComment(&p, strings.TrimSpace(line[1:]))
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) < 2 {
			fields = strings.SplitN(line, "\t", 2)
		}
		if len(fields) < 2 {
			continue
		}
		value := strings.TrimSpace(fields[1])
		switch strings.ToLower(fields[0]) {
		case "host":
			p.Name = value
		case "hostname":
			hostName = value
		case "user":
			p.User = value
		case "port":
			if port, err := strconv.Atoi(value); err == nil {
				p.Port = port
			}
		case "identityfile":
			p.IdentityFile = value
		}
	}

	if p.Name == "" || hostName == "" {
		return database.Profile{}, false
	}
	p.Host = hostName
	if p.User == "" {
		p.User = "root"
	}
	return p, true
}

func parseMetaComment(p *database.Profile, comment string) {
	key, value, found := strings.Cut(comment, ":")
	if !found {
		return
	}
	value = strings.TrimSpace(value)
	switch key {
	case "Group":
		p.Group = value
	case "Favorite":
		p.Favorite = strings.EqualFold(value, "true")
	case "LastUsed":
		if t, ok := parseTime(value); ok {
			p.LastUsed = &t
		}
	case "CreatedAt":
		if t, ok := parseTime(value); ok {
			p.CreatedAt = t
		}
	}
}

// SplitSSHConfigBlocks splits a file into Host blocks. A block ends at a
// blank line or at the next Host line.
func SplitSSHConfigBlocks(content string) []string {
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			flush()
			continue
		}
		if strings.HasPrefix(strings.ToLower(stripped), "host ") {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return blocks
}
