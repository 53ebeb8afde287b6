// Package menu is the profile selection screen shown between sessions.
package menu

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/z0nyx/Akidzuki-CLI/internal/catalog"
	"github.com/z0nyx/Akidzuki-CLI/internal/database"
)

// Source is the part of the catalog the menu reads and edits.
type Source interface {
	List(f catalog.Filter) ([]database.Profile, error)
	ToggleFavorite(name string) (bool, error)
	Groups() ([]string, error)
	Recent(limit int) ([]database.Profile, error)
}

// Options configure a menu run.
type Options struct {
	SortBy      string
	RecentLimit int
	ShowColors  bool
	// Detached names the profile whose session is kept in the background.
	Detached string
	// Status is shown once below the list, e.g. the outcome of the last session.
	Status string
	Now    func() time.Time
}

// Model is the bubbletea model of the menu.
type Model struct {
	src    Source
	opts   Options
	keys   KeyMap
	help   help.Model
	styles styles

	filter    textinput.Model
	filtering bool

	profiles      []database.Profile
	recent        map[string]bool
	cursor        int
	sortIdx       int
	groups        []string
	groupIdx      int // -1 means all groups
	favoritesOnly bool

	selected *database.Profile
	quitting bool
	status   string
	err      error
	height   int
}

func New(src Source, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "name or host"
	ti.CharLimit = 64

	m := Model{
		src:      src,
		opts:     opts,
		keys:     DefaultKeyMap,
		help:     help.New(),
		styles:   newStyles(opts.ShowColors),
		filter:   ti,
		groupIdx: -1,
		status:   opts.Status,
	}
	for i, s := range catalog.SortOrders {
		if s == opts.SortBy {
			m.sortIdx = i
		}
	}
	m.reload()
	return m
}

// Selected returns the chosen profile, or nil if the operator quit.
func (m Model) Selected() *database.Profile {
	return m.selected
}

// Profiles returns the rows currently listed.
func (m Model) Profiles() []database.Profile {
	return m.profiles
}

func (m Model) sortBy() string {
	return catalog.SortOrders[m.sortIdx]
}

func (m Model) group() string {
	if m.groupIdx < 0 || m.groupIdx >= len(m.groups) {
		return ""
	}
	return m.groups[m.groupIdx]
}

func (m *Model) reload() {
	groups, err := m.src.Groups()
	if err != nil {
		m.err = err
		return
	}
	m.groups = groups
	if m.groupIdx >= len(m.groups) {
		m.groupIdx = -1
	}

	profiles, err := m.src.List(catalog.Filter{
		Text:          m.filter.Value(),
		Group:         m.group(),
		FavoritesOnly: m.favoritesOnly,
		SortBy:        m.sortBy(),
	})
	if err != nil {
		m.err = err
		return
	}
	m.profiles = profiles
	m.err = nil

	m.recent = make(map[string]bool)
	if m.opts.RecentLimit > 0 {
		if recent, err := m.src.Recent(m.opts.RecentLimit); err == nil {
			for _, p := range recent {
				m.recent[p.Name] = true
			}
		}
	}

	if m.cursor >= len(m.profiles) {
		m.cursor = len(m.profiles) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case key.Matches(msg, m.keys.FilterClear):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.reload()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	m.reload()
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.profiles)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		if len(m.profiles) == 0 {
			return m, nil
		}
		p := m.profiles[m.cursor]
		m.selected = &p
		return m, tea.Quit
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Favorite):
		if len(m.profiles) == 0 {
			return m, nil
		}
		name := m.profiles[m.cursor].Name
		fav, err := m.src.ToggleFavorite(name)
		if err != nil {
			m.err = err
			return m, nil
		}
		if fav {
			m.status = fmt.Sprintf("%s added to favorites", name)
		} else {
			m.status = fmt.Sprintf("%s removed from favorites", name)
		}
		m.reload()
	case key.Matches(msg, m.keys.FavoritesOnly):
		m.favoritesOnly = !m.favoritesOnly
		m.cursor = 0
		m.reload()
	case key.Matches(msg, m.keys.Sort):
		m.sortIdx = (m.sortIdx + 1) % len(catalog.SortOrders)
		m.reload()
	case key.Matches(msg, m.keys.Group):
		// -1 (all) -> 0 .. len-1 -> -1
		m.groupIdx++
		if m.groupIdx >= len(m.groups) {
			m.groupIdx = -1
		}
		m.cursor = 0
		m.reload()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting || m.selected != nil {
		return ""
	}
	var b strings.Builder

	b.WriteString(m.styles.title.Render("akidzuki"))
	b.WriteString(m.styles.faint.Render("  " + m.summary()))
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	if len(m.profiles) == 0 {
		b.WriteString(m.styles.faint.Render("  No profiles. Add one with `akidzuki add`."))
		b.WriteString("\n")
	}
	for i, p := range m.visible() {
		idx := i + m.offset()
		line := m.row(p)
		if idx == m.cursor {
			b.WriteString(m.styles.cursor.Render("> " + line))
		} else {
			b.WriteString(m.styles.row.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.styles.err.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.styles.status.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) summary() string {
	parts := []string{"sort: " + m.sortBy()}
	if g := m.group(); g != "" {
		parts = append(parts, "group: "+g)
	}
	if m.favoritesOnly {
		parts = append(parts, "favorites")
	}
	parts = append(parts, strconv.Itoa(len(m.profiles))+" profiles")
	return strings.Join(parts, " · ")
}

// pageSize is the number of rows that fit; 0 means unlimited.
func (m Model) pageSize() int {
	if m.height <= 0 {
		return 0
	}
	// title, blank, blank, status, help
	if n := m.height - 6; n > 0 {
		return n
	}
	return 1
}

func (m Model) offset() int {
	size := m.pageSize()
	if size == 0 || m.cursor < size {
		return 0
	}
	return m.cursor - size + 1
}

func (m Model) visible() []database.Profile {
	size := m.pageSize()
	if size == 0 || len(m.profiles) <= size {
		return m.profiles
	}
	start := m.offset()
	end := start + size
	if end > len(m.profiles) {
		end = len(m.profiles)
	}
	return m.profiles[start:end]
}

func (m Model) row(p database.Profile) string {
	marker := " "
	if p.Favorite {
		marker = m.styles.favorite.Render("★")
	} else if m.recent[p.Name] {
		marker = "•"
	}

	target := fmt.Sprintf("%s@%s:%d", p.User, p.Address(), p.Port)
	line := fmt.Sprintf("%s %-20s %-32s", marker, p.Name, target)
	if p.Group != "" {
		line += " [" + p.Group + "]"
	}
	if p.IdentityFile != "" {
		line += " (key)"
	}
	if p.LastUsed != nil {
		line += m.styles.faint.Render("  " + humanize.RelTime(*p.LastUsed, m.opts.Now(), "ago", "from now"))
	}
	if m.opts.Detached != "" && p.Name == m.opts.Detached {
		line += m.styles.detached.Render("  (detached)")
	}
	return line
}

// Run shows the menu until the operator picks a profile or quits. A nil
// profile means quit.
func Run(src Source, opts Options) (*database.Profile, error) {
	prog := tea.NewProgram(New(src, opts), tea.WithAltScreen())
	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("run menu: %w", err)
	}
	return final.(Model).Selected(), nil
}
